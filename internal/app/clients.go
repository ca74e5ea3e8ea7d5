package app

import (
	"context"
	"fmt"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine/gemini"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine/mock"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine/oaihttp"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/rediscache"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
)

func newCompleter(ctx context.Context, log *logger.Logger, cfg config.EngineConfig, dims int) (engine.Completer, error) {
	switch cfg.Type {
	case "oai_http":
		e, err := oaihttp.New(log, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini":
		e, err := gemini.New(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "mock":
		return mock.New(dims), nil
	default:
		return nil, fmt.Errorf("unsupported inference engine %q", cfg.Type)
	}
}

// newEmbedder returns the configured embedder behind the embedding cache.
// The returned closer releases the Redis connection, if one was opened.
func newEmbedder(ctx context.Context, log *logger.Logger, cfg *config.Config) (engine.Embedder, func() error, error) {
	var base engine.Embedder
	switch cfg.Embedding.Engine.Type {
	case "oai_http":
		e, err := oaihttp.New(log, cfg.Embedding.Engine)
		if err != nil {
			return nil, nil, err
		}
		base = e
	case "mock":
		base = mock.New(cfg.Embedding.Dimension)
	default:
		return nil, nil, fmt.Errorf("unsupported embedding engine %q", cfg.Embedding.Engine.Type)
	}
	if cfg.Cache.Size <= 0 {
		return base, nil, nil
	}

	var (
		remote retrieval.RemoteCache
		closer func() error
	)
	rc, err := rediscache.New(ctx, log, rediscache.Config{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   "btgen:emb:",
	})
	if err != nil {
		log.Warn("Redis embedding cache unavailable; using local cache only", "addr", cfg.Cache.RedisAddr, "error", err)
	} else if rc != nil {
		remote = rc
		closer = rc.Close
	}

	cached, err := retrieval.NewCachedEmbedder(log, base, cfg.Cache.Size, cfg.Cache.TTL.Duration, remote)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, nil, err
	}
	return cached, closer, nil
}
