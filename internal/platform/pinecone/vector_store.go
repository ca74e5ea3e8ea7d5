package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// VectorStore addresses indexes by name. Data-plane hosts are resolved once
// per index via describe_index unless pinned in StoreConfig.Hosts.
type VectorStore struct {
	log       *logger.Logger
	pc        Client
	namespace string

	mu    sync.Mutex
	hosts map[string]string
}

type StoreConfig struct {
	Namespace string
	// Hosts pins index name -> data-plane host.
	Hosts map[string]string
}

func NewVectorStore(log *logger.Logger, pc Client, cfg StoreConfig) (*VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	hosts := make(map[string]string, len(cfg.Hosts))
	for name, host := range cfg.Hosts {
		if strings.TrimSpace(name) != "" && strings.TrimSpace(host) != "" {
			hosts[strings.TrimSpace(name)] = strings.TrimSpace(host)
		}
	}
	return &VectorStore{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		namespace: strings.TrimSpace(cfg.Namespace),
		hosts:     hosts,
	}, nil
}

func (s *VectorStore) host(ctx context.Context, indexName string) (string, error) {
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return "", fmt.Errorf("index name required")
	}
	s.mu.Lock()
	h, ok := s.hosts[indexName]
	s.mu.Unlock()
	if ok {
		return h, nil
	}

	desc, err := s.pc.DescribeIndex(ctx, indexName)
	if err != nil {
		return "", fmt.Errorf("pinecone describe_index failed: %w", err)
	}
	s.log.Warn("Index host not pinned; resolved via describe_index", "index_name", indexName, "index_host", desc.Host)

	s.mu.Lock()
	s.hosts[indexName] = desc.Host
	s.mu.Unlock()
	return desc.Host, nil
}

// QueryMatches returns up to topK matches with metadata, in index order.
func (s *VectorStore) QueryMatches(ctx context.Context, indexName string, q []float32, topK int) ([]QueryMatch, error) {
	host, err := s.host(ctx, indexName)
	if err != nil {
		return nil, err
	}
	resp, err := s.pc.Query(ctx, host, QueryRequest{
		Namespace:       s.namespace,
		Vector:          q,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (s *VectorStore) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	host, err := s.host(ctx, indexName)
	if err != nil {
		return err
	}
	_, err = s.pc.UpsertVectors(ctx, host, UpsertRequest{Namespace: s.namespace, Vectors: vectors})
	return err
}

// EnsureIndex creates a serverless cosine index when describe_index reports 404.
func (s *VectorStore) EnsureIndex(ctx context.Context, indexName string, dim int, cloud, region string) error {
	_, err := s.pc.DescribeIndex(ctx, indexName)
	if err == nil {
		return nil
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		return err
	}
	if cloud == "" {
		cloud = "aws"
	}
	if region == "" {
		region = "us-east-1"
	}
	s.log.Info("Creating index", "index_name", indexName, "dimension", dim, "cloud", cloud, "region", region)
	desc, err := s.pc.CreateIndex(ctx, CreateIndexRequest{
		Name:      indexName,
		Dimension: dim,
		Metric:    "cosine",
		Spec:      IndexSpec{Serverless: &ServerlessSpec{Cloud: cloud, Region: region}},
	})
	if err != nil {
		var ce *HTTPError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}
	if strings.TrimSpace(desc.Host) != "" {
		s.mu.Lock()
		s.hosts[indexName] = desc.Host
		s.mu.Unlock()
	}
	return nil
}
