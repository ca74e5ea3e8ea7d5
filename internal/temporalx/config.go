package temporalx

import (
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	WorkerConcurrency     int
}

// FromConfig takes the address, namespace and queue from the loaded config
// and the mTLS and worker knobs from the environment.
func FromConfig(tc config.TemporalConfig) Config {
	return Config{
		Address:   strings.TrimSpace(tc.Address),
		Namespace: stringsOr(tc.Namespace, "btgen"),
		TaskQueue: stringsOr(tc.TaskQueue, "btgen"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		WorkerConcurrency:     envutil.Int("TEMPORAL_WORKER_CONCURRENCY", 2),
	}
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) tlsEnabled() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
