// Package storage implements object stores for GCS, S3, Azure Blob Storage,
// the local filesystem and memory.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jittakal/kafobjectsink/internal/credentials"
	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Backend names.
const (
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendAzure  = "azure"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Backends returns the supported backend names.
func Backends() []string {
	return []string{BackendGCS, BackendS3, BackendAzure, BackendFile, BackendMemory}
}

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	ObserveUploadDuration(backend string, seconds float64)
	IncStorageErrors(backend string, operation string)
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Bucket      string
	Credentials credentials.Source
	GCS         GCSConfig
	S3          S3Config
	Azure       AzureConfig
	File        FileConfig
}

// New creates the object store for the configured backend.
func New(ctx context.Context, cfg Config, logger *slog.Logger, metrics MetricsCollector) (pkgstorage.ObjectStore, error) {
	switch cfg.Backend {
	case BackendGCS:
		gcsCfg := cfg.GCS
		gcsCfg.Bucket = cfg.Bucket
		gcsCfg.Credentials = cfg.Credentials
		return NewGCSStore(ctx, gcsCfg, logger, metrics)
	case BackendS3:
		s3Cfg := cfg.S3
		s3Cfg.Bucket = cfg.Bucket
		return NewS3Store(ctx, s3Cfg, logger, metrics)
	case BackendAzure:
		azCfg := cfg.Azure
		if azCfg.ContainerName == "" {
			azCfg.ContainerName = cfg.Bucket
		}
		return NewAzureStore(azCfg, logger, metrics)
	case BackendFile:
		return NewFileStore(cfg.File, logger, metrics)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedBackend, cfg.Backend)
	}
}

// putError wraps an upload failure for key.
func putError(key string, err error) error {
	return &errors.StorageError{Operation: "put", Key: key, Err: err}
}

func recordError(metrics MetricsCollector, backend, operation string) {
	if metrics != nil {
		metrics.IncStorageErrors(backend, operation)
	}
}

func recordDuration(metrics MetricsCollector, backend string, seconds float64) {
	if metrics != nil {
		metrics.ObserveUploadDuration(backend, seconds)
	}
}
