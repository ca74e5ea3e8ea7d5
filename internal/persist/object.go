package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// ObjectStore is a bucket that replaces whole objects atomically. PutIfAbsent
// reports false without writing when key already exists.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) (bool, error)
	URL(key string) string
}

// ObjectSink writes the same layout as LocalSink into object storage.
type ObjectSink struct {
	log    *logger.Logger
	store  ObjectStore
	prefix string
}

func NewObjectSink(log *logger.Logger, store ObjectStore, prefix string) (*ObjectSink, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	return &ObjectSink{
		log:    log.With("component", "ObjectSink"),
		store:  store,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

func (s *ObjectSink) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}

// Save claims the key through a conditional metadata write, then writes the
// artifact. Taken keys get the same suffixes as LocalSink.
func (s *ObjectSink) Save(ctx context.Context, rec Record) (Location, error) {
	base, err := rec.baseName()
	if err != nil {
		return Location{}, err
	}

	var key string
	for attempt := 0; ; attempt++ {
		if attempt == maxKeyAttempts {
			return Location{}, fmt.Errorf("%w: %s", ErrKeyTaken, base)
		}
		key = candidateKey(base, attempt)
		rec.Metadata.FileKey = key
		meta, err := json.MarshalIndent(rec.Metadata, "", "  ")
		if err != nil {
			return Location{}, fmt.Errorf("encode metadata: %w", err)
		}
		metaKey := s.key(MetadataKey(key))
		created, err := s.store.PutIfAbsent(ctx, metaKey, meta, "application/json")
		if err != nil {
			return Location{}, fmt.Errorf("put metadata %s: %w", metaKey, err)
		}
		if created {
			break
		}
	}
	if key != base {
		s.log.Warn("Output key taken; using suffixed key", "key", base, "using", key)
	}

	loc := Location{Metadata: s.store.URL(s.key(MetadataKey(key)))}
	xmlKey := s.key(XMLKey(key))
	if err := s.store.Put(ctx, xmlKey, []byte(rec.XML), "application/xml"); err != nil {
		return loc, fmt.Errorf("put xml %s: %w", xmlKey, err)
	}
	loc.XML = s.store.URL(xmlKey)

	s.log.Info("Behavior tree saved", "xml_url", loc.XML, "metadata_url", loc.Metadata)
	return loc, nil
}
