package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
)

type Options struct {
	EmbedModel string
	Dimension  int
	ChunkSize  int
	BatchSize  int
	// Parallel bounds concurrent embed+upsert batches.
	Parallel int
}

type Report struct {
	Source   string        `json:"source"`
	Chunks   int           `json:"chunks"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// Ingestor loads documents into a vector index: extract, chunk, embed, upsert.
type Ingestor struct {
	log       *logger.Logger
	extractor Extractor
	embedder  engine.Embedder
	writer    VectorWriter
	opts      Options
}

func NewIngestor(log *logger.Logger, ex Extractor, embedder engine.Embedder, writer VectorWriter, opts Options) (*Ingestor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ex == nil || embedder == nil || writer == nil {
		return nil, fmt.Errorf("extractor, embedder and writer required")
	}
	if strings.TrimSpace(opts.EmbedModel) == "" {
		return nil, fmt.Errorf("embedding model required")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	return &Ingestor{
		log:       log.With("component", "Ingestor"),
		extractor: ex,
		embedder:  embedder,
		writer:    writer,
		opts:      opts,
	}, nil
}

// EnsureIndex creates the index when it does not exist yet.
func (in *Ingestor) EnsureIndex(ctx context.Context, indexName string) error {
	if in.opts.Dimension <= 0 {
		return fmt.Errorf("embedding dimension required")
	}
	return in.writer.EnsureIndex(ctx, indexName, in.opts.Dimension)
}

func (in *Ingestor) Ingest(ctx context.Context, path, indexName string) (Report, error) {
	start := time.Now()
	doc, err := in.extractor.Extract(ctx, path)
	if err != nil {
		return Report{}, err
	}
	chunks := Chunk(doc.Text, in.opts.ChunkSize)
	rep := Report{Source: doc.ID, Chunks: len(chunks)}
	log := in.log.With("source", doc.ID, "index_name", indexName)
	log.Info("Ingesting document", "kind", doc.Kind, "chunks", len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Parallel)
	for lo := 0; lo < len(chunks); lo += in.opts.BatchSize {
		hi := min(lo+in.opts.BatchSize, len(chunks))
		rep.Batches++
		g.Go(func() error {
			return in.upsertBatch(gctx, indexName, doc.ID, lo, chunks[lo:hi])
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	rep.Duration = time.Since(start)
	log.Info("Document ingested", "chunks", rep.Chunks, "batches", rep.Batches, "duration_ms", rep.Duration.Milliseconds())
	return rep, nil
}

// upsertBatch embeds one batch; ids are "{source}-{j}" with j the chunk's
// position in the whole document.
func (in *Ingestor) upsertBatch(ctx context.Context, indexName, source string, offset int, chunks []string) error {
	vecs, err := in.embedder.Embed(ctx, in.opts.EmbedModel, chunks)
	if err != nil {
		return fmt.Errorf("embed batch at %d: %w", offset, err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embed batch at %d: got %d vectors for %d chunks", offset, len(vecs), len(chunks))
	}
	batch := make([]Vector, len(chunks))
	for i, c := range chunks {
		batch[i] = Vector{
			ID:     fmt.Sprintf("%s-%d", source, offset+i),
			Values: vecs[i],
			Metadata: map[string]any{
				retrieval.TextKey: c,
				"source":          source,
			},
		}
	}
	if err := in.writer.Upsert(ctx, indexName, batch); err != nil {
		return fmt.Errorf("upsert batch at %d: %w", offset, err)
	}
	in.log.Debug("Batch upserted", "offset", offset, "size", len(batch))
	return nil
}
