// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Sentinel errors for configuration failures.
var (
	ErrInvalidTemplate         = errors.New("invalid file name template")
	ErrUnsupportedCodec        = errors.New("unsupported compression type")
	ErrInvalidTimezone         = errors.New("invalid timezone")
	ErrInvalidTimestampSource  = errors.New("invalid timestamp source")
	ErrConflictingCredentials  = errors.New("credentials path and credentials json cannot both be set")
	ErrUnsupportedFormat       = errors.New("unsupported output format")
	ErrUnsupportedOutputField  = errors.New("unsupported output field")
	ErrUnsupportedBackend      = errors.New("unsupported storage backend")
	ErrUnsupportedEncodingType = errors.New("unsupported value encoding")
)

// Sentinel errors for runtime conditions.
var (
	ErrOffsetOrder     = errors.New("offset is not greater than the last appended offset")
	ErrPartitionFailed = errors.New("partition has an unflushed batch from a failed upload")
	ErrTaskStopped     = errors.New("task is stopped")
	ErrConsumerClosed  = errors.New("consumer is closed")
	ErrWriterClosed    = errors.New("object store is closed")
	ErrConnectionLost  = errors.New("connection lost")
)

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Setting string
	Value   any
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return fmt.Sprintf("invalid value %q for configuration %s: %v", fmt.Sprint(e.Value), e.Setting, e.Err)
	}
	return fmt.Sprintf("invalid value %q for configuration %s: %s", fmt.Sprint(e.Value), e.Setting, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a ConfigError for setting.
func NewConfigError(setting string, value any, err error) *ConfigError {
	return &ConfigError{Setting: setting, Value: value, Err: err}
}

// OffsetOrderError reports an ordering-contract violation by the record source.
type OffsetOrderError struct {
	TopicPartition record.TopicPartition
	LastOffset     int64
	Offset         int64
}

func (e *OffsetOrderError) Error() string {
	return fmt.Sprintf("ordering violation: partition=%s offset=%d last_offset=%d: %v",
		e.TopicPartition, e.Offset, e.LastOffset, ErrOffsetOrder)
}

func (e *OffsetOrderError) Unwrap() error {
	return ErrOffsetOrder
}

// StorageError represents an object store operation failure.
type StorageError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s key=%s: %v",
		e.Operation, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	TopicPartition record.TopicPartition
	Offset         int64
	Err            error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.TopicPartition, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable reports whether the storage operation can be attempted again with
// the same key and payload.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "put" || e.Operation == "upload" || e.Operation == "write"
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
