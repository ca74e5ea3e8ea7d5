package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/assembler"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/prompt"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/runlog"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/xmlextract"
)

type Retriever interface {
	Retrieve(ctx context.Context, query, indexName string, topK int) ([]retrieval.Match, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, cfg generation.DecodingConfig) (string, error)
	Model() string
	AdapterEnabled() bool
}

type Ledger interface {
	Record(ctx context.Context, run runlog.Run) error
}

type Deps struct {
	Retriever Retriever
	Builder   *prompt.Builder
	Generator Generator
	Sink      persist.Sink
	// Ledger and Metrics are optional.
	Ledger  Ledger
	Metrics *observability.Metrics
}

type Options struct {
	IndexName   string
	TopK        int
	Decoding    generation.DecodingConfig
	Concurrency int
	Now         func() time.Time
}

// Pipeline turns a scenario into a saved behavior tree:
// retrieve, assemble, build, generate, extract, save.
type Pipeline struct {
	log     *logger.Logger
	deps    Deps
	opts    Options
	catalog prompt.Catalog
	tracer  trace.Tracer
}

func New(log *logger.Logger, deps Deps, opts Options) (*Pipeline, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Retriever == nil || deps.Generator == nil || deps.Sink == nil {
		return nil, fmt.Errorf("retriever, generator and sink required")
	}
	if deps.Builder == nil {
		deps.Builder = prompt.NewBuilder(prompt.DefaultTemplate)
	}
	if strings.TrimSpace(opts.IndexName) == "" {
		return nil, fmt.Errorf("index name required")
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	opts.Decoding = opts.Decoding.WithDefaults()
	if err := opts.Decoding.Validate(); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		log:     log.With("component", "Pipeline"),
		deps:    deps,
		opts:    opts,
		catalog: prompt.NodeCatalog(),
		tracer:  otel.Tracer("btgen/pipeline"),
	}, nil
}

func (p *Pipeline) IndexName() string { return p.opts.IndexName }

// Outcome describes one completed run.
type Outcome struct {
	RunID         string            `json:"run_id"`
	Scenario      Scenario          `json:"scenario"`
	Timestamp     string            `json:"timestamp"`
	ContextChunks int               `json:"context_chunks"`
	Context       string            `json:"context"`
	Prompt        string            `json:"prompt"`
	RawResponse   string            `json:"raw_response"`
	Extract       xmlextract.Result `json:"extract"`
	Metadata      persist.Metadata  `json:"metadata"`
	Location      persist.Location  `json:"location"`
	Duration      time.Duration     `json:"duration"`
}

// StepError names the pipeline step that failed and keeps the cause.
type StepError struct {
	Step     string
	Scenario string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %q: %s: %v", e.Scenario, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run processes one scenario. An empty retrieval result still produces a
// prompt and a generation.
func (p *Pipeline) Run(ctx context.Context, sc Scenario) (out Outcome, err error) {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return Outcome{}, &StepError{Step: "validate", Err: errors.New("scenario name required")}
	}
	if strings.TrimSpace(sc.Prompt) == "" {
		return Outcome{}, &StepError{Step: "validate", Scenario: sc.Name, Err: errors.New("prompt required")}
	}
	if _, err := persist.NameKey(sc.Name); err != nil {
		return Outcome{}, &StepError{Step: "validate", Scenario: sc.Name, Err: err}
	}

	start := p.opts.Now()
	out = Outcome{
		RunID:     uuid.New().String(),
		Scenario:  sc,
		Timestamp: persist.Timestamp(start),
	}
	log := p.log.With("run_id", out.RunID, "scenario", sc.Name)
	log.Info("Generating behavior tree")

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("btgen.run_id", out.RunID),
		attribute.String("btgen.scenario", sc.Name),
	))
	defer func() {
		out.Duration = time.Since(start)
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Behavior tree generation failed", "error", err)
		}
		p.deps.Metrics.IncRun(status, string(out.Extract.Status))
		p.record(ctx, log, out, err)
		span.End()
	}()

	topK := p.opts.TopK
	if sc.TopK > 0 {
		topK = sc.TopK
	}

	var matches []retrieval.Match
	if err = p.step(ctx, "retrieve", func(ctx context.Context) error {
		var rerr error
		matches, rerr = p.deps.Retriever.Retrieve(ctx, sc.Prompt, p.opts.IndexName, topK)
		return rerr
	}); err != nil {
		return out, &StepError{Step: "retrieve", Scenario: sc.Name, Err: err}
	}
	out.ContextChunks = len(matches)
	out.Context = assembler.Assemble(matches)
	if out.Context == "" {
		log.Warn("No retrieved context; generating without grounding", "matches", len(matches))
	}
	out.Prompt = p.deps.Builder.Build(sc.Prompt, out.Context, p.catalog)

	model := p.deps.Generator.Model()
	if err = p.step(ctx, "generate", func(ctx context.Context) error {
		var gerr error
		out.RawResponse, gerr = p.deps.Generator.Generate(ctx, out.Prompt, p.opts.Decoding)
		return gerr
	}); err != nil {
		p.deps.Metrics.IncLLMRequest(model, "error")
		return out, &StepError{Step: "generate", Scenario: sc.Name, Err: err}
	}
	p.deps.Metrics.IncLLMRequest(model, "ok")

	out.Extract = xmlextract.Extract(out.RawResponse)
	if out.Extract.Status != xmlextract.StatusParsed {
		log.Warn("XML not parsed from response", "xml_status", out.Extract.Status)
	}

	out.Metadata = persist.Metadata{
		Timestamp:     out.Timestamp,
		Scenario:      sc.Name,
		Prompt:        sc.Prompt,
		ContextChunks: out.ContextChunks,
		ContextUsed:   assembler.Preview(out.Context, assembler.PreviewLimit),
		GenerationParams: persist.GenerationParams{
			MaxNewTokens: p.opts.Decoding.MaxNewTokens,
			Temperature:  p.opts.Decoding.Temperature,
			TopP:         p.opts.Decoding.TopP,
		},
		RunID:          out.RunID,
		XMLStatus:      string(out.Extract.Status),
		AdapterEnabled: p.deps.Generator.AdapterEnabled(),
		IndexName:      p.opts.IndexName,
		Model:          model,
	}
	if err = p.step(ctx, "save", func(ctx context.Context) error {
		var serr error
		out.Location, serr = p.deps.Sink.Save(ctx, persist.Record{
			ScenarioName: sc.Name,
			Timestamp:    out.Timestamp,
			XML:          out.Extract.XML,
			Metadata:     out.Metadata,
		})
		return serr
	}); err != nil {
		return out, &StepError{Step: "save", Scenario: sc.Name, Err: err}
	}

	log.Info("Behavior tree generated",
		"xml_path", out.Location.XML,
		"xml_status", out.Extract.Status,
		"context_chunks", out.ContextChunks,
	)
	return out, nil
}

func (p *Pipeline) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.deps.Metrics.ObserveStep(name, status, time.Since(start))
	return err
}

// record writes the ledger entry. Ledger failures never fail the run.
func (p *Pipeline) record(ctx context.Context, log *logger.Logger, out Outcome, runErr error) {
	if p.deps.Ledger == nil {
		return
	}
	run := runlog.Run{
		ID:             out.RunID,
		Scenario:       out.Scenario.Name,
		Timestamp:      out.Timestamp,
		PromptHash:     runlog.HashPrompt(out.Prompt),
		ContextChunks:  out.ContextChunks,
		XMLStatus:      string(out.Extract.Status),
		Params:         runlog.ParamsJSON(out.Metadata.GenerationParams),
		AdapterEnabled: out.Metadata.AdapterEnabled,
		Model:          out.Metadata.Model,
		DurationMS:     out.Duration.Milliseconds(),
		XMLPath:        out.Location.XML,
		MetadataPath:   out.Location.Metadata,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// Record even when the caller's context is already cancelled.
	if err := p.deps.Ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("Run ledger write failed", "error", err)
	}
}
