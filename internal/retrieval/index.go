package retrieval

import (
	"context"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/pinecone"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/qdrant"
)

type pineconeQuerier interface {
	QueryMatches(ctx context.Context, indexName string, q []float32, topK int) ([]pinecone.QueryMatch, error)
}

type qdrantSearcher interface {
	Search(ctx context.Context, collection string, q []float32, topK int) ([]qdrant.Match, error)
}

// PineconeIndex adapts a Pinecone vector store.
func PineconeIndex(store pineconeQuerier) Index { return pineconeIndex{store: store} }

// QdrantIndex adapts a Qdrant store; collections stand in for index names.
func QdrantIndex(store qdrantSearcher) Index { return qdrantIndex{store: store} }

// EmptyIndex never returns matches. Used when no vector service is configured.
func EmptyIndex() Index { return emptyIndex{} }

type pineconeIndex struct{ store pineconeQuerier }

func (p pineconeIndex) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Match, error) {
	raw, err := p.store.QueryMatches(ctx, indexName, vector, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		out = append(out, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

type qdrantIndex struct{ store qdrantSearcher }

func (q qdrantIndex) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Match, error) {
	raw, err := q.store.Search(ctx, indexName, vector, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		out = append(out, Match{ID: m.ID, Score: m.Score, Metadata: m.Payload})
	}
	return out, nil
}

type emptyIndex struct{}

func (emptyIndex) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Match, error) {
	return nil, ctx.Err()
}
