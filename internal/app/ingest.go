package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/ingestion"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/envutil"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/gcp"
)

// Ingestor builds the document loader for the configured vector provider.
// Document AI is connected only when a processor is configured.
func (a *App) Ingestor(ctx context.Context) (*ingestion.Ingestor, error) {
	if a.vectors.disabled() {
		return nil, fmt.Errorf("ingestion needs a vector provider (VECTOR_PROVIDER=pinecone|qdrant)")
	}
	cfg := a.Cfg.Ingest

	ex := ingestion.NewFileExtractor(a.Log, nil)
	if strings.TrimSpace(cfg.DocAIProcessor) != "" {
		doc, err := gcp.NewDocument(ctx, a.Log, gcp.DocumentConfig{
			ProjectID:   cfg.DocAIProject,
			Location:    cfg.DocAILocation,
			ProcessorID: cfg.DocAIProcessor,
		})
		if err != nil {
			return nil, fmt.Errorf("init document ai: %w", err)
		}
		a.addCloser(doc.Close)
		ex = ingestion.NewFileExtractor(a.Log, doc)
	}

	return ingestion.NewIngestor(a.Log, ex, a.embedder, a.vectors.writer, ingestion.Options{
		EmbedModel: a.Cfg.Embedding.Model,
		Dimension:  a.Cfg.Embedding.Dimension,
		ChunkSize:  cfg.ChunkSize,
		BatchSize:  cfg.BatchSize,
		Parallel:   envutil.Int("INGEST_PARALLEL", 4),
	})
}
