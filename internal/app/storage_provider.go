package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/envutil"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/gcp"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/s3store"
)

// bucketStore is an object store that holds a client connection.
type bucketStore interface {
	persist.ObjectStore
	Close() error
}

var newGCSBucket = func(ctx context.Context, log *logger.Logger, cfg gcp.ObjectStorageConfig) (bucketStore, error) {
	b, err := gcp.NewBucket(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

var newS3Store = func(cfg s3store.Config) (persist.ObjectStore, error) {
	s, err := s3store.New(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "output storage bootstrap failed"
	}
	return fmt.Sprintf(
		"output storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveSink picks where generated trees are written. The closer is nil for
// sinks that hold no connection.
func resolveSink(ctx context.Context, log *logger.Logger, cfg config.OutputConfig) (persist.Sink, func() error, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	emulatorHost := envutil.String("STORAGE_EMULATOR_HOST", "")

	log.Info(
		"Selecting output storage",
		"mode", mode,
		"dir", cfg.Dir,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
	)

	switch mode {
	case "", "local":
		sink, err := persist.NewLocalSink(log, cfg.Dir)
		if err != nil {
			return nil, nil, storageFailed(log, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorConnectFailed,
				Mode:  "local",
				Cause: err,
			})
		}
		return sink, nil, nil

	case string(gcp.ObjectStorageModeGCS), string(gcp.ObjectStorageModeGCSEmulator):
		storageCfg := gcp.ObjectStorageConfig{
			Mode:         gcp.ObjectStorageMode(mode),
			EmulatorHost: emulatorHost,
			Bucket:       strings.TrimSpace(cfg.Bucket),
		}
		bucket, err := newGCSBucket(ctx, log, storageCfg)
		if err != nil {
			return nil, nil, storageFailed(log, classifyStorageProviderBootstrapError(storageCfg, err))
		}
		sink, err := persist.NewObjectSink(log, bucket, cfg.Prefix)
		if err != nil {
			_ = bucket.Close()
			return nil, nil, err
		}
		return sink, bucket.Close, nil

	case "s3":
		if strings.TrimSpace(cfg.Bucket) == "" {
			return nil, nil, storageFailed(log, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorMissingBucket,
				Mode:  mode,
				Cause: fmt.Errorf("OUTPUT_MODE=%q requires OUTPUT_BUCKET to be set", mode),
			})
		}
		store, err := newS3Store(s3store.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, storageFailed(log, &StorageProviderBootstrapError{
				Code:  StorageProviderBootstrapErrorConnectFailed,
				Mode:  mode,
				Cause: err,
			})
		}
		sink, err := persist.NewObjectSink(log, store, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil

	default:
		return nil, nil, storageFailed(log, &StorageProviderBootstrapError{
			Code:         StorageProviderBootstrapErrorInvalidMode,
			Mode:         mode,
			EmulatorHost: emulatorHost,
			Cause:        fmt.Errorf("unsupported output mode %q", mode),
		})
	}
}

func storageFailed(log *logger.Logger, err error) error {
	var mode, emulatorHost string
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		mode, emulatorHost = bootstrapErr.Mode, bootstrapErr.EmulatorHost
	}
	log.Error(
		"Output storage bootstrap failed",
		"mode", mode,
		"emulator_host", emulatorHost,
		"error_code", storageProviderBootstrapErrorCode(err),
		"error", err,
	)
	return err
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingBucket:
			code = StorageProviderBootstrapErrorMissingBucket
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
