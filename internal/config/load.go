package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIndexName    = "pdf-rag-index"
	DefaultOutputDir    = "behavior_trees"
	DefaultBaseModel    = "codellama/CodeLlama-7b-Instruct-hf"
	DefaultAdapter      = "codellama-bt-adapter"
	DefaultEmbedModel   = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbedDim     = 384
	DefaultTopK         = 3
	DefaultChunkSize    = 500
	DefaultUpsertBatch  = 100
	DefaultMaxNewTokens = 512
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.95
	RunLogFileName      = "btgen_runs.db"
)

// UseLocalOutput switches output to the local directory dir. A sqlite ledger
// whose DSN was derived from the previous directory follows it there.
func (c *Config) UseLocalOutput(dir string) {
	prev := c.Output.Dir
	c.Output.Mode = "local"
	c.Output.Dir = dir
	if c.RunLog.Driver == "sqlite" && c.RunLog.DSN == filepath.Join(prev, RunLogFileName) {
		c.RunLog.DSN = filepath.Join(dir, RunLogFileName)
	}
}

// ConfigError reports one invalid field after all layers are applied.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
			CORSAllowOrigins:  []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"},
		},
		Model: ModelConfig{
			BaseModel:      DefaultBaseModel,
			Adapter:        DefaultAdapter,
			AdapterEnabled: true,
		},
		Inference: EngineConfig{
			Type:    "oai_http",
			BaseURL: "http://localhost:8000",
			Timeout: Duration{Duration: 5 * time.Minute},
		},
		Embedding: EmbeddingConfig{
			Engine:    EngineConfig{Type: "oai_http", BaseURL: "http://localhost:8001", Timeout: Duration{Duration: 30 * time.Second}},
			Model:     DefaultEmbedModel,
			Dimension: DefaultEmbedDim,
		},
		Retrieval: RetrievalConfig{
			Provider:  "pinecone",
			IndexName: DefaultIndexName,
			TopK:      DefaultTopK,
			Pinecone:  PineconeConfig{Cloud: "aws", Region: "us-east-1"},
		},
		Cache: CacheConfig{
			Size: 1024,
			TTL:  Duration{Duration: 24 * time.Hour},
		},
		PromptTemplate: "llama2_chat",
		Decoding: DecodingConfig{
			MaxNewTokens: DefaultMaxNewTokens,
			Temperature:  DefaultTemperature,
			TopP:         DefaultTopP,
		},
		Output: OutputConfig{
			Mode: "local",
			Dir:  DefaultOutputDir,
			S3:   S3Config{Region: "us-east-1"},
		},
		RunLog: RunLogConfig{Driver: "sqlite"},
		Temporal: TemporalConfig{
			Namespace: "btgen",
			TaskQueue: "btgen",
		},
		Ingest: IngestConfig{
			ChunkSize:     DefaultChunkSize,
			BatchSize:     DefaultUpsertBatch,
			DocAILocation: "us",
		},
		BatchConcurrency: 1,
	}
}

// Load applies defaults, an optional YAML file, then environment overrides,
// and validates the result.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("BTGEN_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "btgen.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		if err := loadFile(cfg, cfgPath); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays YAML onto the defaults; absent keys keep their defaults.
func loadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "LOG_MODE", "BTGEN_ENV")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR", "BTGEN_HTTP_ADDR")
	setString(&cfg.HTTP.JWTSecret, "API_JWT_SECRET")
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); v != "" {
		cfg.HTTP.CORSAllowOrigins = splitList(v)
	}

	setString(&cfg.Model.BaseModel, "BASE_MODEL_PATH")
	setString(&cfg.Model.Adapter, "LORA_ADAPTER_PATH")
	setBool(&cfg.Model.AdapterEnabled, "ADAPTER_ENABLED")

	setString(&cfg.Inference.Type, "INFERENCE_ENGINE")
	setString(&cfg.Inference.BaseURL, "INFERENCE_BASE_URL")
	setString(&cfg.Inference.APIKey, "INFERENCE_API_KEY", "GEMINI_API_KEY")
	setSeconds(&cfg.Inference.Timeout, "INFERENCE_TIMEOUT_SECONDS")
	setInt(&cfg.Inference.MaxRetries, "INFERENCE_MAX_RETRIES")
	setBool(&cfg.Inference.Echo, "INFERENCE_ECHO")

	setString(&cfg.Embedding.Engine.Type, "EMBED_ENGINE")
	setString(&cfg.Embedding.Engine.BaseURL, "EMBED_BASE_URL")
	setString(&cfg.Embedding.Engine.APIKey, "EMBED_API_KEY")
	setString(&cfg.Embedding.Model, "EMBED_MODEL")
	setInt(&cfg.Embedding.Dimension, "EMBED_DIM")

	setString(&cfg.Retrieval.Provider, "VECTOR_PROVIDER")
	setString(&cfg.Retrieval.IndexName, "VECTOR_INDEX_NAME", "PINECONE_INDEX_NAME")
	setInt(&cfg.Retrieval.TopK, "RETRIEVAL_TOP_K")
	setString(&cfg.Retrieval.Pinecone.APIKey, "PINECONE_API_KEY")
	setString(&cfg.Retrieval.Pinecone.IndexHost, "PINECONE_INDEX_HOST")
	setString(&cfg.Retrieval.Pinecone.Namespace, "PINECONE_NAMESPACE")
	setString(&cfg.Retrieval.Qdrant.URL, "QDRANT_URL")
	setString(&cfg.Retrieval.Qdrant.APIKey, "QDRANT_API_KEY")

	setInt(&cfg.Cache.Size, "EMBED_CACHE_SIZE")
	setSeconds(&cfg.Cache.TTL, "EMBED_CACHE_TTL_SECONDS")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")

	setString(&cfg.PromptTemplate, "PROMPT_TEMPLATE")
	setInt(&cfg.Decoding.MaxNewTokens, "MAX_NEW_TOKENS")
	setFloat(&cfg.Decoding.Temperature, "TEMPERATURE")
	setFloat(&cfg.Decoding.TopP, "TOP_P")

	setString(&cfg.Output.Mode, "OUTPUT_MODE")
	setString(&cfg.Output.Dir, "OUTPUT_DIR")
	setString(&cfg.Output.Bucket, "OUTPUT_BUCKET")
	setString(&cfg.Output.Prefix, "OUTPUT_PREFIX")
	setString(&cfg.Output.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Output.S3.Region, "S3_REGION")
	setString(&cfg.Output.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.Output.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.Output.S3.UseSSL, "S3_USE_SSL")

	setString(&cfg.RunLog.Driver, "RUNLOG_DRIVER")
	setString(&cfg.RunLog.DSN, "RUNLOG_DSN")

	setString(&cfg.Temporal.Address, "TEMPORAL_ADDRESS")
	setString(&cfg.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	setString(&cfg.Temporal.TaskQueue, "TEMPORAL_TASK_QUEUE")

	setInt(&cfg.Ingest.ChunkSize, "INGEST_CHUNK_SIZE")
	setInt(&cfg.Ingest.BatchSize, "INGEST_BATCH_SIZE")
	setString(&cfg.Ingest.DocAIProject, "DOCUMENTAI_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	setString(&cfg.Ingest.DocAILocation, "DOCUMENTAI_LOCATION")
	setString(&cfg.Ingest.DocAIProcessor, "DOCUMENTAI_PROCESSOR_ID")

	setInt(&cfg.BatchConcurrency, "BATCH_CONCURRENCY")
}

func normalize(cfg *Config) error {
	cfg.Env = strings.TrimSpace(cfg.Env)
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}

	cfg.Model.BaseModel = strings.TrimSpace(cfg.Model.BaseModel)
	cfg.Model.Adapter = strings.TrimSpace(cfg.Model.Adapter)
	if cfg.Model.Adapter == "" {
		cfg.Model.AdapterEnabled = false
	}

	if err := normalizeEngine("inference", &cfg.Inference, []string{"oai_http", "gemini", "mock"}); err != nil {
		return err
	}
	if cfg.Inference.CompletionsPath == "" {
		cfg.Inference.CompletionsPath = "/v1/completions"
	}
	if cfg.Inference.Type != "mock" && cfg.Model.BaseModel == "" {
		return invalid("model.base_model", "required (BASE_MODEL_PATH)")
	}
	if cfg.Inference.MaxRetries < 0 {
		return invalid("inference.max_retries", "must be >= 0")
	}

	if err := normalizeEngine("embedding.engine", &cfg.Embedding.Engine, []string{"oai_http", "mock"}); err != nil {
		return err
	}
	if cfg.Embedding.Engine.EmbeddingsPath == "" {
		cfg.Embedding.Engine.EmbeddingsPath = "/v1/embeddings"
	}
	if strings.TrimSpace(cfg.Embedding.Model) == "" {
		cfg.Embedding.Model = DefaultEmbedModel
	}
	if cfg.Embedding.Dimension <= 0 {
		return invalid("embedding.dimension", "must be positive")
	}

	cfg.Retrieval.Provider = strings.ToLower(strings.TrimSpace(cfg.Retrieval.Provider))
	switch cfg.Retrieval.Provider {
	case "pinecone":
		if strings.TrimSpace(cfg.Retrieval.Pinecone.APIKey) == "" {
			return invalid("retrieval.pinecone.api_key", "required (PINECONE_API_KEY)")
		}
	case "qdrant":
		if strings.TrimSpace(cfg.Retrieval.Qdrant.URL) == "" {
			return invalid("retrieval.qdrant.url", "required (QDRANT_URL)")
		}
	case "none":
	default:
		return invalid("retrieval.provider", "unsupported %q (want pinecone|qdrant|none)", cfg.Retrieval.Provider)
	}
	cfg.Retrieval.IndexName = strings.TrimSpace(cfg.Retrieval.IndexName)
	if cfg.Retrieval.IndexName == "" {
		cfg.Retrieval.IndexName = DefaultIndexName
	}
	if cfg.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k", "must be positive")
	}

	switch strings.TrimSpace(cfg.PromptTemplate) {
	case "":
		cfg.PromptTemplate = "llama2_chat"
	case "llama2_chat", "inst":
	default:
		return invalid("prompt_template", "unsupported %q (want llama2_chat|inst)", cfg.PromptTemplate)
	}

	cfg.Output.Mode = strings.ToLower(strings.TrimSpace(cfg.Output.Mode))
	switch cfg.Output.Mode {
	case "", "local":
		cfg.Output.Mode = "local"
	case "gcs", "gcs_emulator", "s3":
		if strings.TrimSpace(cfg.Output.Bucket) == "" {
			return invalid("output.bucket", "required for mode %q (OUTPUT_BUCKET)", cfg.Output.Mode)
		}
		if cfg.Output.Mode == "s3" && strings.TrimSpace(cfg.Output.S3.Endpoint) == "" {
			return invalid("output.s3.endpoint", "required for mode s3 (S3_ENDPOINT)")
		}
	default:
		return invalid("output.mode", "unsupported %q (want local|gcs|gcs_emulator|s3)", cfg.Output.Mode)
	}
	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = DefaultOutputDir
	}

	cfg.RunLog.Driver = strings.ToLower(strings.TrimSpace(cfg.RunLog.Driver))
	switch cfg.RunLog.Driver {
	case "", "none":
		cfg.RunLog.Driver = "none"
	case "sqlite":
		if strings.TrimSpace(cfg.RunLog.DSN) == "" {
			cfg.RunLog.DSN = filepath.Join(cfg.Output.Dir, RunLogFileName)
		}
	case "postgres":
		if strings.TrimSpace(cfg.RunLog.DSN) == "" {
			return invalid("runlog.dsn", "required for postgres (RUNLOG_DSN)")
		}
	default:
		return invalid("runlog.driver", "unsupported %q (want sqlite|postgres|none)", cfg.RunLog.Driver)
	}

	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = DefaultChunkSize
	}
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = DefaultUpsertBatch
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return nil
}

func normalizeEngine(field string, e *EngineConfig, allowed []string) error {
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	if e.Type == "openai_http" {
		e.Type = "oai_http"
	}
	ok := false
	for _, a := range allowed {
		if e.Type == a {
			ok = true
			break
		}
	}
	if !ok {
		return invalid(field+".type", "unsupported %q (want %s)", e.Type, strings.Join(allowed, "|"))
	}
	e.BaseURL = strings.TrimRight(strings.TrimSpace(e.BaseURL), "/")
	e.CompletionsPath = strings.TrimSpace(e.CompletionsPath)
	e.EmbeddingsPath = strings.TrimSpace(e.EmbeddingsPath)
	if e.Type == "oai_http" && e.BaseURL == "" {
		return invalid(field+".base_url", "required for oai_http")
	}
	if e.Type == "gemini" && strings.TrimSpace(e.APIKey) == "" {
		return invalid(field+".api_key", "required for gemini (GEMINI_API_KEY)")
	}
	if e.Timeout.Duration <= 0 {
		e.Timeout = Duration{Duration: 60 * time.Second}
	}
	return nil
}

// IsConfigError reports whether err came from validation.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func lookup(names ...string) (string, bool) {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v, true
		}
	}
	return "", false
}

func setString(dst *string, names ...string) {
	if v, ok := lookup(names...); ok {
		*dst = v
	}
}

func setInt(dst *int, names ...string) {
	if v, ok := lookup(names...); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, names ...string) {
	if v, ok := lookup(names...); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, names ...string) {
	if v, ok := lookup(names...); ok {
		*dst = parseBool(v)
	}
}

func setSeconds(dst *Duration, names ...string) {
	if v, ok := lookup(names...); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = Duration{Duration: time.Duration(n) * time.Second}
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
