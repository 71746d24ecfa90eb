// Package buffer implements per-partition batch accumulation.
package buffer

import (
	"sort"
	"sync"
	"time"

	"github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/buffer"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Ensure implementations satisfy interfaces at compile time.
var (
	_ buffer.Accumulator = (*PartitionAccumulator)(nil)
	_ buffer.Manager     = (*Manager)(nil)
)

// noOffset marks an accumulator that has never seen a record.
const noOffset int64 = -1

// PartitionAccumulator buffers records for a single Kafka partition.
// It is owned by one partition worker; the mutex only protects readers such as
// metrics and health checks.
type PartitionAccumulator struct {
	tp              record.TopicPartition
	records         []record.Record
	startOffset     int64
	lastOffset      int64
	sizeBytes       int64
	firstAppendTime time.Time
	lastAppendTime  time.Time
	capacityHint    int
	now             func() time.Time
	mu              sync.RWMutex
}

// New creates a new partition accumulator. capacityHint pre-sizes the record
// slice and may be zero.
func New(tp record.TopicPartition, capacityHint int) *PartitionAccumulator {
	return &PartitionAccumulator{
		tp:           tp,
		records:      make([]record.Record, 0, capacityHint),
		startOffset:  noOffset,
		lastOffset:   noOffset,
		capacityHint: capacityHint,
		now:          time.Now,
	}
}

// Append adds a record to the batch. A record whose offset is not strictly
// greater than the last appended offset is rejected with an
// *errors.OffsetOrderError and the batch is left untouched.
func (a *PartitionAccumulator) Append(rec record.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastOffset != noOffset && rec.Offset <= a.lastOffset {
		return &errors.OffsetOrderError{
			TopicPartition: a.tp,
			LastOffset:     a.lastOffset,
			Offset:         rec.Offset,
		}
	}

	now := a.now()
	if len(a.records) == 0 {
		a.startOffset = rec.Offset
		a.firstAppendTime = now
	}
	a.records = append(a.records, rec)
	a.sizeBytes += rec.Size()
	a.lastOffset = rec.Offset
	a.lastAppendTime = now

	return nil
}

// Close returns the accumulated batch and resets the accumulator to empty.
// Closing an empty accumulator returns false and no batch. The last appended
// offset is kept so ordering is enforced across batches.
func (a *PartitionAccumulator) Close() (record.Batch, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.records) == 0 {
		return record.Batch{}, false
	}

	batch := record.Batch{
		TopicPartition: a.tp,
		StartOffset:    a.startOffset,
		SizeBytes:      a.sizeBytes,
		Records:        a.records,
	}
	a.reset()
	return batch, true
}

// Stats returns current batch statistics.
func (a *PartitionAccumulator) Stats() record.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := record.Stats{
		RecordCount:     len(a.records),
		SizeBytes:       a.sizeBytes,
		StartOffset:     noOffset,
		LastOffset:      a.lastOffset,
		FirstAppendTime: a.firstAppendTime,
		LastAppendTime:  a.lastAppendTime,
	}
	if len(a.records) > 0 {
		stats.StartOffset = a.startOffset
	}
	return stats
}

// IsEmpty returns true if the accumulator is empty.
func (a *PartitionAccumulator) IsEmpty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records) == 0
}

// TopicPartition returns the partition this accumulator belongs to.
func (a *PartitionAccumulator) TopicPartition() record.TopicPartition {
	return a.tp
}

func (a *PartitionAccumulator) reset() {
	a.records = make([]record.Record, 0, a.capacityHint)
	a.startOffset = noOffset
	a.sizeBytes = 0
	a.firstAppendTime = time.Time{}
	a.lastAppendTime = time.Time{}
}

// Manager manages accumulators for multiple Kafka partitions.
// It provides thread-safe access to partition-specific accumulators, creating them on-demand.
// Uses double-checked locking for efficient concurrent access.
type Manager struct {
	accumulators map[record.TopicPartition]*PartitionAccumulator
	capacityHint int
	mu           sync.RWMutex
}

// NewManager creates a new accumulator manager.
func NewManager(capacityHint int) *Manager {
	return &Manager{
		accumulators: make(map[record.TopicPartition]*PartitionAccumulator),
		capacityHint: capacityHint,
	}
}

// GetOrCreate returns the accumulator for the partition, creating if needed.
func (m *Manager) GetOrCreate(tp record.TopicPartition) buffer.Accumulator {
	return m.getOrCreate(tp)
}

// Accumulator returns the concrete accumulator for the partition, creating if needed.
func (m *Manager) Accumulator(tp record.TopicPartition) *PartitionAccumulator {
	return m.getOrCreate(tp)
}

func (m *Manager) getOrCreate(tp record.TopicPartition) *PartitionAccumulator {
	m.mu.RLock()
	acc, exists := m.accumulators[tp]
	m.mu.RUnlock()

	if exists {
		return acc
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if acc, exists := m.accumulators[tp]; exists {
		return acc
	}

	acc = New(tp, m.capacityHint)
	m.accumulators[tp] = acc
	return acc
}

// Get returns the accumulator for the partition if one exists.
func (m *Manager) Get(tp record.TopicPartition) (*PartitionAccumulator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accumulators[tp]
	return acc, ok
}

// Release drops the accumulator of a partition.
func (m *Manager) Release(tp record.TopicPartition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accumulators, tp)
}

// Partitions returns the partitions with an accumulator, sorted by topic and partition.
func (m *Manager) Partitions() []record.TopicPartition {
	m.mu.RLock()
	tps := make([]record.TopicPartition, 0, len(m.accumulators))
	for tp := range m.accumulators {
		tps = append(tps, tp)
	}
	m.mu.RUnlock()

	sort.Slice(tps, func(i, j int) bool {
		if tps[i].Topic != tps[j].Topic {
			return tps[i].Topic < tps[j].Topic
		}
		return tps[i].Partition < tps[j].Partition
	})
	return tps
}
