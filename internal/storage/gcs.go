package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/kafobjectsink/internal/credentials"
	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.ObjectStore = (*GCSStore)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket      string
	ProjectID   string
	Endpoint    string
	Credentials credentials.Source
	// ClientOptions are appended after the credential options.
	ClientOptions []option.ClientOption
}

// GCSStore implements storage.ObjectStore for Google Cloud Storage.
// Object keys are deterministic, so uploads are retried even though object
// writes are not idempotent in the GCS sense.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
	closed  bool
	mu      sync.RWMutex
}

// NewGCSStore creates a new Google Cloud Storage object store.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if cfg.Credentials == nil {
		cfg.Credentials = credentials.Default{}
	}

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	clientOpts = append(clientOpts, cfg.Credentials.ClientOptions()...)
	clientOpts = append(clientOpts, cfg.ClientOptions...)

	logger.Info("using GCP credentials", "source", cfg.Credentials.String())

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	client.SetRetry(storage.WithPolicy(storage.RetryAlways))

	logger.Info("GCS object store created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
	)

	return &GCSStore{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Put uploads the payload to gs://bucket/key.
func (s *GCSStore) Put(ctx context.Context, key string, payload pkgstorage.EncodedPayload) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return putError(key, errors.ErrWriterClosed)
	}

	startTime := time.Now()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	applyGCSAttrs(w, payload)

	if _, err := w.Write(payload.Body); err != nil {
		recordError(s.metrics, BackendGCS, "upload")
		w.Close()
		return putError(key, fmt.Errorf("failed to write to GCS: %w", err))
	}
	if err := w.Close(); err != nil {
		recordError(s.metrics, BackendGCS, "close")
		return putError(key, fmt.Errorf("failed to close GCS writer: %w", err))
	}

	duration := time.Since(startTime)
	recordDuration(s.metrics, BackendGCS, duration.Seconds())

	s.logger.Debug("uploaded object to GCS",
		"bucket", s.bucket,
		"key", key,
		"bytes", payload.Size(),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// applyGCSAttrs copies the payload hints onto the object writer.
func applyGCSAttrs(w *storage.Writer, payload pkgstorage.EncodedPayload) {
	w.ContentType = payload.ContentType
	if w.ContentType == "" {
		w.ContentType = "application/octet-stream"
	}
	w.ContentEncoding = payload.ContentEncoding
	if len(payload.Metadata) > 0 {
		w.Metadata = payload.Metadata
	}
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing GCS object store")
	return s.client.Close()
}
