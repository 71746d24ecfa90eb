// Package sink turns per-partition record streams into objects: it drives the
// accumulators, applies the rollover policy and writes closed batches through
// the object store.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/internal/rollover"
	"github.com/jittakal/kafobjectsink/internal/template"
	pkgcodec "github.com/jittakal/kafobjectsink/pkg/codec"
	pkgencoder "github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/jittakal/kafobjectsink/pkg/record"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Object metadata keys.
const (
	MetaTopic       = "kafka-topic"
	MetaPartition   = "kafka-partition"
	MetaStartOffset = "start-offset"
	MetaEndOffset   = "end-offset"
	MetaRecordCount = "record-count"
	MetaTimestamp   = "batch-timestamp"
)

// ClosedBatch is a batch together with everything decided when it closed.
// Writing the same ClosedBatch again yields the same key and bytes.
type ClosedBatch struct {
	Batch     record.Batch
	Trigger   rollover.Trigger
	Timestamp time.Time
}

// WriterConfig configures how closed batches become objects.
type WriterConfig struct {
	Prefix   string
	Template *template.Template
	Codec    pkgcodec.Codec
	Encoder  pkgencoder.Encoder
	Location *time.Location
}

// ObjectWriter names, encodes, compresses and uploads closed batches.
type ObjectWriter struct {
	cfg     WriterConfig
	store   pkgstorage.ObjectStore
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewObjectWriter creates an object writer.
func NewObjectWriter(cfg WriterConfig, store pkgstorage.ObjectStore, logger *slog.Logger, metrics MetricsCollector) *ObjectWriter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ObjectWriter{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Key returns the object key: prefix, rendered template, codec extension.
func (w *ObjectWriter) Key(closed ClosedBatch) string {
	name := w.cfg.Template.Render(template.Context{
		Topic:       closed.Batch.TopicPartition.Topic,
		Partition:   closed.Batch.TopicPartition.Partition,
		StartOffset: closed.Batch.StartOffset,
		Timestamp:   closed.Timestamp,
		Location:    w.cfg.Location,
	})
	return w.cfg.Prefix + name + w.cfg.Codec.Extension()
}

// Encode produces the compressed object body and its upload hints.
func (w *ObjectWriter) Encode(closed ClosedBatch) (pkgstorage.EncodedPayload, error) {
	body, err := w.cfg.Encoder.Encode(closed.Batch.Records)
	if err != nil {
		return pkgstorage.EncodedPayload{}, fmt.Errorf("failed to encode batch: %w", err)
	}
	compressed, err := w.cfg.Codec.Encode(body)
	if err != nil {
		return pkgstorage.EncodedPayload{}, fmt.Errorf("failed to compress batch with %s: %w", w.cfg.Codec.Name(), err)
	}

	tp := closed.Batch.TopicPartition
	return pkgstorage.EncodedPayload{
		Body:            compressed,
		Codec:           w.cfg.Codec.Name(),
		Extension:       w.cfg.Codec.Extension(),
		ContentEncoding: w.cfg.Codec.ContentEncoding(),
		ContentType:     w.cfg.Encoder.ContentType(),
		Metadata: map[string]string{
			MetaTopic:       tp.Topic,
			MetaPartition:   strconv.FormatInt(int64(tp.Partition), 10),
			MetaStartOffset: strconv.FormatInt(closed.Batch.StartOffset, 10),
			MetaEndOffset:   strconv.FormatInt(closed.Batch.LastOffset(), 10),
			MetaRecordCount: strconv.Itoa(closed.Batch.Len()),
			MetaTimestamp:   closed.Timestamp.In(w.cfg.Location).Format(time.RFC3339Nano),
		},
	}, nil
}

// Write uploads one closed batch and returns its key and payload. Failures
// are returned as *errors.StorageError; the caller decides whether to retry.
func (w *ObjectWriter) Write(ctx context.Context, closed ClosedBatch) (string, pkgstorage.EncodedPayload, error) {
	startTime := time.Now()
	tp := closed.Batch.TopicPartition
	format := string(w.cfg.Encoder.Format())

	key := w.Key(closed)
	payload, err := w.Encode(closed)
	if err != nil {
		w.recordFailure(tp, format)
		return key, payload, &apperrors.StorageError{Operation: "encode", Key: key, Err: err}
	}

	if err := w.store.Put(ctx, key, payload); err != nil {
		w.recordFailure(tp, format)
		var storageErr *apperrors.StorageError
		if !errors.As(err, &storageErr) {
			err = &apperrors.StorageError{Operation: "put", Key: key, Err: err}
		}
		return key, payload, err
	}

	duration := time.Since(startTime)
	if w.metrics != nil {
		w.metrics.IncObjectsWritten(tp.Topic, tp.Partition, format, "success")
		w.metrics.ObserveObjectSize(tp.Topic, tp.Partition, format, float64(payload.Size()))
		w.metrics.ObserveWriteDuration(tp.Topic, tp.Partition, duration.Seconds())
	}

	w.logger.Info("wrote batch to object store",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"start_offset", closed.Batch.StartOffset,
		"key", key,
		"records", closed.Batch.Len(),
		"bytes", payload.Size(),
		"trigger", closed.Trigger.String(),
		"duration_ms", duration.Milliseconds(),
	)
	return key, payload, nil
}

func (w *ObjectWriter) recordFailure(tp record.TopicPartition, format string) {
	if w.metrics != nil {
		w.metrics.IncObjectsWritten(tp.Topic, tp.Partition, format, "failure")
	}
}
