package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.ObjectStore = (*AzureStore)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// Validate validates Azure configuration.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// connectionString builds the shared-key connection string for the account.
func (c AzureConfig) connectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureStore implements storage.ObjectStore for Azure Blob Storage.
type AzureStore struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
	closed        bool
	mu            sync.RWMutex
}

// NewAzureStore creates a new Azure Blob object store from account credentials.
func NewAzureStore(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.connectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return NewAzureStoreWithClient(client, cfg.ContainerName, logger, metrics), nil
}

// NewAzureStoreWithClient creates an Azure object store around an existing client.
func NewAzureStoreWithClient(client *azblob.Client, containerName string, logger *slog.Logger, metrics MetricsCollector) *AzureStore {
	logger.Info("Azure object store created", "container", containerName)

	return &AzureStore{
		client:        client,
		containerName: containerName,
		logger:        logger,
		metrics:       metrics,
	}
}

// Put uploads the payload as a block blob.
func (s *AzureStore) Put(ctx context.Context, key string, payload pkgstorage.EncodedPayload) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return putError(key, errors.ErrWriterClosed)
	}

	startTime := time.Now()

	if _, err := s.client.UploadBuffer(ctx, s.containerName, key, payload.Body, azureUploadOptions(payload)); err != nil {
		recordError(s.metrics, BackendAzure, "upload")
		return putError(key, fmt.Errorf("failed to upload to Azure Blob: %w", err))
	}

	duration := time.Since(startTime)
	recordDuration(s.metrics, BackendAzure, duration.Seconds())

	s.logger.Debug("uploaded object to Azure Blob",
		"container", s.containerName,
		"key", key,
		"bytes", payload.Size(),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

func azureUploadOptions(payload pkgstorage.EncodedPayload) *azblob.UploadBufferOptions {
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{},
	}
	if payload.ContentType != "" {
		opts.HTTPHeaders.BlobContentType = &payload.ContentType
	}
	if payload.ContentEncoding != "" {
		opts.HTTPHeaders.BlobContentEncoding = &payload.ContentEncoding
	}
	if len(payload.Metadata) > 0 {
		opts.Metadata = make(map[string]*string, len(payload.Metadata))
		for k, v := range payload.Metadata {
			v := v
			opts.Metadata[k] = &v
		}
	}
	return opts
}

// Close marks the store closed.
func (s *AzureStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logger.Info("Azure object store closed")
	return nil
}
