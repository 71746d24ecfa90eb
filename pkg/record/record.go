// Package record defines the record and batch types that flow from the
// record source through the batching engine to the object store.
package record

import (
	"fmt"
	"time"
)

// TopicPartition uniquely identifies a Kafka topic partition.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition in the format "topic-partition".
func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// Header is a single record header. Header order is preserved.
type Header struct {
	Key   string
	Value []byte
}

// Record is an immutable record delivered by the record source.
// Key, Value and Headers are optional.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Key       []byte
	Value     []byte
	Headers   []Header
}

// TopicPartition returns the partition the record belongs to.
func (r *Record) TopicPartition() TopicPartition {
	return TopicPartition{Topic: r.Topic, Partition: r.Partition}
}

// Size returns the number of payload bytes the record contributes to a batch:
// key, value and header keys and values.
func (r *Record) Size() int64 {
	size := int64(len(r.Key) + len(r.Value))
	for _, h := range r.Headers {
		size += int64(len(h.Key) + len(h.Value))
	}
	return size
}

// Batch is the closed contents of one accumulator: the records destined for a
// single object, in offset order.
type Batch struct {
	TopicPartition TopicPartition
	StartOffset    int64
	SizeBytes      int64
	Records        []Record
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.Records)
}

// LastOffset returns the offset of the last record, or -1 for an empty batch.
func (b *Batch) LastOffset() int64 {
	if len(b.Records) == 0 {
		return -1
	}
	return b.Records[len(b.Records)-1].Offset
}

// Stats contains statistics about an accumulating batch.
type Stats struct {
	RecordCount     int
	SizeBytes       int64
	StartOffset     int64
	LastOffset      int64
	FirstAppendTime time.Time
	LastAppendTime  time.Time
}
