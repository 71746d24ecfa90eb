// Package buffer defines interfaces for per-partition batch accumulation.
//
// Accumulators collect records for a single topic partition until the
// rollover policy or an external signal closes the batch.
package buffer

import (
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Accumulator buffers the records of one topic partition.
type Accumulator interface {
	// Append adds a record. The offset must be strictly greater than the
	// offset of the previously appended record.
	Append(rec record.Record) error

	// Close returns the accumulated batch and resets the accumulator.
	// It returns false when there is nothing to close.
	Close() (record.Batch, bool)

	// Stats returns current batch statistics without modifying the batch.
	Stats() record.Stats

	// IsEmpty returns true if the accumulator holds no records.
	IsEmpty() bool
}

// Manager creates and manages accumulators for partitions.
type Manager interface {
	// GetOrCreate returns the accumulator for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(tp record.TopicPartition) Accumulator

	// Release drops the accumulator of a partition that is no longer owned.
	Release(tp record.TopicPartition)

	// Partitions returns the partitions that currently have an accumulator.
	Partitions() []record.TopicPartition
}
