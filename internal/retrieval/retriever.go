package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// Index is a named nearest-neighbor store queried with metadata included.
type Index interface {
	Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Match, error)
}

type Retriever struct {
	log        *logger.Logger
	embedder   engine.Embedder
	embedModel string
	index      Index
}

func NewRetriever(log *logger.Logger, embedder engine.Embedder, embedModel string, index Index) (*Retriever, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if index == nil {
		return nil, fmt.Errorf("index required")
	}
	return &Retriever{
		log:        log.With("component", "Retriever"),
		embedder:   embedder,
		embedModel: strings.TrimSpace(embedModel),
		index:      index,
	}, nil
}

// Retrieve embeds query and returns up to topK matches in the order the index
// reports them. Failures are not retried.
func (r *Retriever) Retrieve(ctx context.Context, query, indexName string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, &Error{Code: ErrorValidation, Op: "retrieve", Index: indexName, Err: fmt.Errorf("top_k must be positive, got %d", topK)}
	}
	if strings.TrimSpace(indexName) == "" {
		return nil, &Error{Code: ErrorValidation, Op: "retrieve", Err: errors.New("index name required")}
	}

	start := time.Now()
	vecs, err := r.embedder.Embed(ctx, r.embedModel, []string{query})
	if err != nil {
		return nil, &Error{Code: ErrorEmbedFailed, Op: "embed", Index: indexName, Err: err}
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &Error{Code: ErrorEmbedFailed, Op: "embed", Index: indexName, Err: errors.New("embedder returned no vector")}
	}

	matches, err := r.index.Query(ctx, indexName, vecs[0], topK)
	if err != nil {
		return nil, &Error{Code: ErrorQueryFailed, Op: "query", Index: indexName, Err: err}
	}
	r.log.Debug("Retrieved context",
		"index_name", indexName,
		"top_k", topK,
		"matches", len(matches),
		"vector_dim", len(vecs[0]),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return matches, nil
}
