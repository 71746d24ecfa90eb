// Package consumer defines interfaces for the record source that feeds the
// sink.
//
// A Consumer delivers each partition's records, in offset order, to a
// RecordSink and marks offsets only after the sink reports them written.
package consumer

import (
	"context"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

// RecordSink receives records and reports what has been durably written.
type RecordSink interface {
	// Put appends a record to its partition's batch.
	Put(ctx context.Context, rec record.Record) error

	// Revoke flushes and releases the given partitions.
	Revoke(ctx context.Context, tps ...record.TopicPartition) error

	// Committed returns the last offset written for a partition.
	Committed(tp record.TopicPartition) (int64, bool)
}

// Consumer reads records from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume delivers records to sink until ctx is cancelled or the
	// consumer fails.
	Consume(ctx context.Context, sink RecordSink) error

	// Ready is closed once the first session has been set up.
	Ready() <-chan struct{}

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes records the sink rejected to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a record to the DLQ with the failure reason.
	Publish(ctx context.Context, rec record.Record, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
