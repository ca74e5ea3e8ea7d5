package app

import (
	"context"
	"errors"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/prompt"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/runlog"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/temporalx"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/temporalx/temporalworker"
)

// App owns every long-lived dependency of the generator. Commands build one,
// use the parts they need and Close it on exit.
type App struct {
	Log       *logger.Logger
	Cfg       *config.Config
	Metrics   *observability.Metrics
	Generator *generation.Generator
	Pipeline  *pipeline.Pipeline
	Runs      *runlog.Store

	Temporal    temporalsdkclient.Client
	TemporalCfg temporalx.Config

	embedder engine.Embedder
	vectors  *vectorProvider
	closers  []func() error
}

type Options struct {
	// Temporal dials the Temporal frontend when an address is configured.
	// Commands that never start workflows leave it off.
	Temporal bool
}

func New(ctx context.Context, log *logger.Logger, cfg *config.Config, opts Options) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	a := &App{
		Log:         log,
		Cfg:         cfg,
		Metrics:     observability.NewMetrics(),
		TemporalCfg: temporalx.FromConfig(cfg.Temporal),
	}
	if err := a.wire(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Cfg

	completer, err := newCompleter(ctx, a.Log, cfg.Inference, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("init inference engine: %w", err)
	}
	embedder, closeCache, err := newEmbedder(ctx, a.Log, cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	a.addCloser(closeCache)
	a.embedder = embedder

	vectors, err := resolveVectorProvider(a.Log, cfg)
	if err != nil {
		return err
	}
	a.vectors = vectors

	retriever, err := retrieval.NewRetriever(a.Log, embedder, cfg.Embedding.Model, vectors.index)
	if err != nil {
		return fmt.Errorf("init retriever: %w", err)
	}

	tmpl, err := prompt.ParseTemplate(cfg.PromptTemplate)
	if err != nil {
		return err
	}

	adapter := generation.NewAdapterSwitch(cfg.Model.Adapter, cfg.Model.AdapterEnabled)
	gen, err := generation.NewGenerator(a.Log, completer, cfg.Model.BaseModel, adapter)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	a.Generator = gen

	sink, closeSink, err := resolveSink(ctx, a.Log, cfg.Output)
	if err != nil {
		return err
	}
	a.addCloser(closeSink)

	deps := pipeline.Deps{
		Retriever: retriever,
		Builder:   prompt.NewBuilder(tmpl),
		Generator: gen,
		Sink:      sink,
		Metrics:   a.Metrics,
	}
	runs, err := runlog.Open(a.Log, cfg.RunLog.Driver, cfg.RunLog.DSN)
	if err != nil {
		a.Log.Warn("Run ledger unavailable; continuing without it", "driver", cfg.RunLog.Driver, "error", err)
	} else if runs != nil {
		a.Runs = runs
		a.addCloser(runs.Close)
		deps.Ledger = runs
	}

	p, err := pipeline.New(a.Log, deps, pipeline.Options{
		IndexName: cfg.Retrieval.IndexName,
		TopK:      cfg.Retrieval.TopK,
		Decoding: generation.DecodingConfig{
			MaxNewTokens: cfg.Decoding.MaxNewTokens,
			Temperature:  cfg.Decoding.Temperature,
			TopP:         cfg.Decoding.TopP,
		},
		Concurrency: cfg.BatchConcurrency,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	a.Pipeline = p

	if opts.Temporal {
		tc, err := temporalx.NewClient(ctx, a.Log, a.TemporalCfg)
		if err != nil {
			return fmt.Errorf("init temporal client: %w", err)
		}
		if tc != nil {
			a.Temporal = tc
			a.addCloser(func() error { tc.Close(); return nil })
		}
	}

	a.Log.Info("Generator ready",
		"engine", cfg.Inference.Type,
		"model", gen.Model(),
		"adapter_enabled", gen.AdapterEnabled(),
		"vector_provider", vectors.name,
		"index", cfg.Retrieval.IndexName,
		"output_mode", cfg.Output.Mode,
		"runlog", a.Runs != nil,
	)
	return nil
}

// Worker builds the Temporal worker that executes durable scenario batches.
func (a *App) Worker() (*temporalworker.Runner, error) {
	if a.Temporal == nil {
		return nil, fmt.Errorf("temporal is not configured (TEMPORAL_ADDRESS)")
	}
	return temporalworker.NewRunner(a.Log, a.Temporal, a.TemporalCfg, a.Pipeline)
}

func (a *App) addCloser(fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
