package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.ObjectStore = (*FileStore)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileStore implements storage.ObjectStore on a local directory tree.
// Each key maps to a file below the base path; "/" in keys creates directories.
type FileStore struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
	closed   bool
	mu       sync.RWMutex
}

// NewFileStore creates a new filesystem object store.
func NewFileStore(cfg FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileStore, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("file base path is required")
	}
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem object store created", "base_path", cfg.BasePath)

	return &FileStore{
		basePath: cfg.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Path returns the file path for key, rejecting keys that escape the base path.
func (s *FileStore) Path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes base path", key)
	}
	return full, nil
}

// Put writes the payload to a temporary file and renames it into place, so a
// reader never sees a partial object.
func (s *FileStore) Put(ctx context.Context, key string, payload pkgstorage.EncodedPayload) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return putError(key, errors.ErrWriterClosed)
	}
	if err := ctx.Err(); err != nil {
		return putError(key, err)
	}

	startTime := time.Now()

	fullPath, err := s.Path(key)
	if err != nil {
		recordError(s.metrics, BackendFile, "path")
		return putError(key, err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		recordError(s.metrics, BackendFile, "mkdir")
		return putError(key, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		recordError(s.metrics, BackendFile, "create")
		return putError(key, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		recordError(s.metrics, BackendFile, "write")
		return putError(key, fmt.Errorf("failed to write file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		recordError(s.metrics, BackendFile, "write")
		return putError(key, fmt.Errorf("failed to close file: %w", err))
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		recordError(s.metrics, BackendFile, "rename")
		return putError(key, fmt.Errorf("failed to rename file: %w", err))
	}

	duration := time.Since(startTime)
	recordDuration(s.metrics, BackendFile, duration.Seconds())

	s.logger.Debug("wrote object to file",
		"path", fullPath,
		"bytes", payload.Size(),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logger.Info("closing filesystem object store")
	return nil
}
