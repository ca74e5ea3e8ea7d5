package ingestion

import (
	"context"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/pinecone"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/qdrant"
)

// Vector is one embedded chunk ready for upsert.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// VectorWriter provisions and fills a named index.
type VectorWriter interface {
	EnsureIndex(ctx context.Context, indexName string, dim int) error
	Upsert(ctx context.Context, indexName string, vectors []Vector) error
}

type pineconeStore interface {
	EnsureIndex(ctx context.Context, indexName string, dim int, cloud, region string) error
	Upsert(ctx context.Context, indexName string, vectors []pinecone.Vector) error
}

type qdrantStore interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
}

// PineconeWriter creates missing indexes as serverless cosine indexes in the
// given cloud and region.
func PineconeWriter(store pineconeStore, cloud, region string) VectorWriter {
	return pineconeWriter{store: store, cloud: cloud, region: region}
}

func QdrantWriter(store qdrantStore) VectorWriter { return qdrantWriter{store: store} }

type pineconeWriter struct {
	store         pineconeStore
	cloud, region string
}

func (w pineconeWriter) EnsureIndex(ctx context.Context, indexName string, dim int) error {
	return w.store.EnsureIndex(ctx, indexName, dim, w.cloud, w.region)
}

func (w pineconeWriter) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	vs := make([]pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		vs = append(vs, pinecone.Vector{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
	}
	return w.store.Upsert(ctx, indexName, vs)
}

type qdrantWriter struct{ store qdrantStore }

func (w qdrantWriter) EnsureIndex(ctx context.Context, indexName string, dim int) error {
	return w.store.EnsureCollection(ctx, indexName, dim)
}

func (w qdrantWriter) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	ps := make([]qdrant.Point, 0, len(vectors))
	for _, v := range vectors {
		ps = append(ps, qdrant.Point{ID: v.ID, Vector: v.Values, Payload: v.Metadata})
	}
	return w.store.Upsert(ctx, indexName, ps)
}
