package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/ingestion"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/pinecone"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/qdrant"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
)

var (
	newPineconeClient    = pinecone.New
	newQdrantVectorStore = qdrant.NewVectorStore
)

const vectorClientTimeout = 30 * time.Second

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider      VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL     VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL     VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantVector  VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed   VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorProviderInitFailed   VectorProviderBootstrapErrorCode = "provider_init_failed"
	VectorProviderBootstrapCodeDisabledMissingAPIKey VectorProviderBootstrapErrorCode = "disabled_missing_api_key"
	VectorProviderBootstrapCodeDisabledByConfig      VectorProviderBootstrapErrorCode = "disabled_by_config"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf(
		"vector provider bootstrap failed (code=%s provider=%q): %v",
		e.Code,
		e.Provider,
		e.Cause,
	)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// vectorProvider is the resolved vector backend. A disabled provider has an
// empty index, no writer and no readiness check.
type vectorProvider struct {
	name   string
	index  retrieval.Index
	writer ingestion.VectorWriter
	ready  func(ctx context.Context) error
}

func (p *vectorProvider) disabled() bool { return p == nil || p.writer == nil }

func resolveVectorProvider(log *logger.Logger, cfg *config.Config) (*vectorProvider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Retrieval.Provider))
	log.Info("Selecting vector provider", "provider", provider, "index", cfg.Retrieval.IndexName)

	switch provider {
	case "pinecone":
		pc := cfg.Retrieval.Pinecone
		if strings.TrimSpace(pc.APIKey) == "" {
			log.Warn(
				"Vector provider disabled; retrieval returns no context",
				"provider", provider,
				"code", VectorProviderBootstrapCodeDisabledMissingAPIKey,
			)
			return disabledVectorProvider(provider), nil
		}
		client, err := newPineconeClient(log, pinecone.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: vectorClientTimeout,
		})
		if err != nil {
			return nil, vectorProviderFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		var hosts map[string]string
		if host := strings.TrimSpace(pc.IndexHost); host != "" {
			hosts = map[string]string{cfg.Retrieval.IndexName: host}
		}
		store, err := pinecone.NewVectorStore(log, client, pinecone.StoreConfig{Namespace: pc.Namespace, Hosts: hosts})
		if err != nil {
			return nil, vectorProviderFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		indexName := cfg.Retrieval.IndexName
		return &vectorProvider{
			name:   provider,
			index:  retrieval.PineconeIndex(store),
			writer: ingestion.PineconeWriter(store, pc.Cloud, pc.Region),
			ready: func(ctx context.Context) error {
				_, err := client.DescribeIndex(ctx, indexName)
				return err
			},
		}, nil

	case "qdrant":
		qcfg := qdrant.Config{
			URL:       strings.TrimSpace(cfg.Retrieval.Qdrant.URL),
			APIKey:    cfg.Retrieval.Qdrant.APIKey,
			VectorDim: cfg.Embedding.Dimension,
			Timeout:   vectorClientTimeout,
		}
		if err := qdrant.ValidateConfig(qcfg); err != nil {
			return nil, vectorProviderFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		store, err := newQdrantVectorStore(log, qcfg)
		if err != nil {
			return nil, vectorProviderFailed(log, provider, classifyVectorProviderBootstrapError(provider, err))
		}
		return &vectorProvider{
			name:   provider,
			index:  retrieval.QdrantIndex(store),
			writer: ingestion.QdrantWriter(store),
			ready:  store.Ready,
		}, nil

	case "none", "":
		log.Warn(
			"Vector provider disabled; retrieval returns no context",
			"provider", "none",
			"code", VectorProviderBootstrapCodeDisabledByConfig,
		)
		return disabledVectorProvider("none"), nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		return nil, vectorProviderFailed(log, provider, err)
	}
}

func disabledVectorProvider(name string) *vectorProvider {
	return &vectorProvider{name: name, index: retrieval.EmptyIndex()}
}

func vectorProviderFailed(log *logger.Logger, provider string, err error) error {
	log.Error(
		"Vector provider bootstrap failed",
		"provider", provider,
		"error_code", vectorProviderBootstrapErrorCode(err),
		"error", err,
	)
	return err
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		return err
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		code := VectorProviderBootstrapErrorQdrantConfigFailed
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderBootstrapErrorInvalidQdrantVector
		}
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	return &VectorProviderBootstrapError{
		Code:     VectorProviderBootstrapErrorProviderInitFailed,
		Provider: provider,
		Cause:    err,
	}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
