package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.ObjectStore = (*S3Store)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate validates S3 configuration.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// S3Store implements storage.ObjectStore for AWS S3.
// Large objects go through the multipart upload manager.
type S3Store struct {
	uploader    *manager.Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
	closed      bool
	mu          sync.RWMutex
}

// NewS3Store creates a new S3 object store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg, logger, metrics), nil
}

// NewS3StoreWithClient creates an S3 object store around an existing client.
func NewS3StoreWithClient(client *s3.Client, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) *S3Store {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 object store created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Store{
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}
}

// Put uploads the payload to s3://bucket/key.
func (s *S3Store) Put(ctx context.Context, key string, payload pkgstorage.EncodedPayload) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return putError(key, errors.ErrWriterClosed)
	}

	startTime := time.Now()

	result, err := s.uploader.Upload(ctx, s.putObjectInput(key, payload))
	if err != nil {
		recordError(s.metrics, BackendS3, "upload")
		return putError(key, fmt.Errorf("failed to upload to S3: %w", err))
	}

	duration := time.Since(startTime)
	recordDuration(s.metrics, BackendS3, duration.Seconds())

	s.logger.Debug("uploaded object to S3",
		"bucket", s.bucket,
		"key", key,
		"bytes", payload.Size(),
		"location", result.Location,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

func (s *S3Store) putObjectInput(key string, payload pkgstorage.EncodedPayload) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload.Body),
	}
	if payload.ContentType != "" {
		input.ContentType = aws.String(payload.ContentType)
	}
	if payload.ContentEncoding != "" {
		input.ContentEncoding = aws.String(payload.ContentEncoding)
	}
	if len(payload.Metadata) > 0 {
		input.Metadata = payload.Metadata
	}

	if s.sseEnabled {
		if s.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(s.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Close marks the store closed. The S3 client holds no resources to release.
func (s *S3Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logger.Info("closing S3 object store")
	return nil
}
