package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// Bucket stores generated artifacts in one GCS bucket. A single object write
// is atomic: readers see the old object or the new one.
type Bucket struct {
	log          *logger.Logger
	client       *storage.Client
	name         string
	emulatorHost string
}

func NewBucket(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (*Bucket, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	b := &Bucket{
		log:    log.With("service", "gcp.Bucket"),
		client: client,
		name:   strings.TrimSpace(cfg.Bucket),
	}
	if cfg.IsEmulatorMode() {
		b.emulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	}
	b.log.Info("Object storage initialized",
		"mode", cfg.Mode,
		"bucket", b.name,
		"emulator_host", b.emulatorHost,
	)
	return b, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(cfg.Mode),
		}
	}
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return b.write(ctx, b.client.Bucket(b.name).Object(key), data, contentType)
}

// PutIfAbsent writes with a DoesNotExist precondition and reports false when
// the object is already there.
func (b *Bucket) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) (bool, error) {
	obj := b.client.Bucket(b.name).Object(key).If(storage.Conditions{DoesNotExist: true})
	err := b.write(ctx, obj, data, contentType)
	if isPreconditionFailed(err) {
		return false, nil
	}
	return err == nil, err
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return true
	}
	return status.Code(err) == codes.FailedPrecondition
}

func (b *Bucket) write(ctx context.Context, obj *storage.ObjectHandle, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *Bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// URL is a gs:// URI, or the emulator media URL in emulator mode.
func (b *Bucket) URL(key string) string {
	if b.emulatorHost != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", b.emulatorHost, url.PathEscape(b.name), url.PathEscape(key))
	}
	return "gs://" + b.name + "/" + key
}

func (b *Bucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
