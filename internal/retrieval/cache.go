package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// RemoteCache is a shared byte cache (Redis in production).
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CachedEmbedder memoizes embeddings per (model, text). Lookups go local LRU,
// then the remote cache, then the wrapped embedder. Cache failures are logged
// and fall through. Returned vectors never alias cached entries.
type CachedEmbedder struct {
	log    *logger.Logger
	next   engine.Embedder
	local  *expirable.LRU[string, []float32]
	remote RemoteCache
	ttl    time.Duration
}

func NewCachedEmbedder(log *logger.Logger, next engine.Embedder, size int, ttl time.Duration, remote RemoteCache) (*CachedEmbedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if next == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if size <= 0 {
		size = 1024
	}
	return &CachedEmbedder{
		log:    log.With("component", "CachedEmbedder"),
		next:   next,
		local:  expirable.NewLRU[string, []float32](size, nil, ttl),
		remote: remote,
		ttl:    ttl,
	}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	var missIdx []int
	var missInputs []string

	for i, in := range inputs {
		key := embeddingKey(model, in)
		if v, ok := c.local.Get(key); ok {
			out[i] = slices.Clone(v)
			continue
		}
		if c.remote != nil {
			b, ok, err := c.remote.Get(ctx, key)
			if err != nil {
				c.log.Warn("Embedding cache read failed", "error", err)
			} else if ok {
				if v, err := decodeVector(b); err == nil {
					c.local.Add(key, v)
					out[i] = slices.Clone(v)
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missInputs = append(missInputs, in)
	}
	if len(missInputs) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, model, missInputs)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missInputs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(missInputs))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		key := embeddingKey(model, missInputs[j])
		c.local.Add(key, slices.Clone(vecs[j]))
		if c.remote != nil {
			if err := c.remote.Set(ctx, key, encodeVector(vecs[j]), c.ttl); err != nil {
				c.log.Warn("Embedding cache write failed", "error", err)
			}
		}
	}
	return out, nil
}

func embeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
