package config

import (
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "5s"-style strings or integer seconds in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	JWTSecret         string   `yaml:"jwt_secret"`
	CORSAllowOrigins  []string `yaml:"cors_allow_origins"`
}

// EngineConfig describes one upstream model server.
type EngineConfig struct {
	Type            string   `yaml:"type"`
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	CompletionsPath string   `yaml:"completions_path"`
	EmbeddingsPath  string   `yaml:"embeddings_path"`
	Timeout         Duration `yaml:"timeout"`
	MaxRetries      int      `yaml:"max_retries"`
	Echo            bool     `yaml:"echo"`
}

type ModelConfig struct {
	// BaseModel is the model id served by the inference engine.
	BaseModel string `yaml:"base_model"`
	// Adapter is the served name of the LoRA adapter; empty disables it.
	Adapter        string `yaml:"adapter"`
	AdapterEnabled bool   `yaml:"adapter_enabled"`
}

type EmbeddingConfig struct {
	Engine    EngineConfig `yaml:"engine"`
	Model     string       `yaml:"model"`
	Dimension int          `yaml:"dimension"`
}

type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	IndexHost string `yaml:"index_host"`
	Namespace string `yaml:"namespace"`
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
}

type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type RetrievalConfig struct {
	Provider  string         `yaml:"provider"`
	IndexName string         `yaml:"index_name"`
	TopK      int            `yaml:"top_k"`
	Pinecone  PineconeConfig `yaml:"pinecone"`
	Qdrant    QdrantConfig   `yaml:"qdrant"`
}

type CacheConfig struct {
	Size          int      `yaml:"size"`
	TTL           Duration `yaml:"ttl"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
}

type DecodingConfig struct {
	MaxNewTokens int     `yaml:"max_new_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type OutputConfig struct {
	Mode   string   `yaml:"mode"`
	Dir    string   `yaml:"dir"`
	Bucket string   `yaml:"bucket"`
	Prefix string   `yaml:"prefix"`
	S3     S3Config `yaml:"s3"`
}

type RunLogConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type TemporalConfig struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

type IngestConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	BatchSize      int    `yaml:"batch_size"`
	DocAIProject   string `yaml:"docai_project"`
	DocAILocation  string `yaml:"docai_location"`
	DocAIProcessor string `yaml:"docai_processor"`
}

type Config struct {
	Env              string          `yaml:"env"`
	HTTP             HTTPConfig      `yaml:"http"`
	Model            ModelConfig     `yaml:"model"`
	Inference        EngineConfig    `yaml:"inference"`
	Embedding        EmbeddingConfig `yaml:"embedding"`
	Retrieval        RetrievalConfig `yaml:"retrieval"`
	Cache            CacheConfig     `yaml:"cache"`
	PromptTemplate   string          `yaml:"prompt_template"`
	Decoding         DecodingConfig  `yaml:"decoding"`
	Output           OutputConfig    `yaml:"output"`
	RunLog           RunLogConfig    `yaml:"runlog"`
	Temporal         TemporalConfig  `yaml:"temporal"`
	Ingest           IngestConfig    `yaml:"ingest"`
	BatchConcurrency int             `yaml:"batch_concurrency"`
}
