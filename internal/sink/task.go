package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jittakal/kafobjectsink/internal/buffer"
	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/internal/rollover"
	"github.com/jittakal/kafobjectsink/internal/timestamp"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// DefaultMaxConcurrentUploads bounds the drain on flush, revoke and stop.
const DefaultMaxConcurrentUploads = 5

// TaskConfig configures a Task.
type TaskConfig struct {
	Policy               rollover.Policy
	Resolver             *timestamp.Resolver
	MaxConcurrentUploads int
	CapacityHint         int
}

// partitionState is guarded by its own mutex so partitions progress
// independently of each other.
type partitionState struct {
	mu       sync.Mutex
	tp       record.TopicPartition
	acc      *buffer.PartitionAccumulator
	pending  *ClosedBatch
	released bool
}

// Task owns the accumulators of every assigned partition and turns closed
// batches into objects.
type Task struct {
	writer  *ObjectWriter
	cfg     TaskConfig
	buffers *buffer.Manager
	logger  *slog.Logger
	metrics MetricsCollector

	mu         sync.RWMutex
	partitions map[record.TopicPartition]*partitionState
	committed  map[record.TopicPartition]int64
	stopped    bool
}

// NewTask creates a task that writes through writer.
func NewTask(cfg TaskConfig, writer *ObjectWriter, logger *slog.Logger, metrics MetricsCollector) *Task {
	if cfg.MaxConcurrentUploads <= 0 {
		cfg.MaxConcurrentUploads = DefaultMaxConcurrentUploads
	}
	if cfg.Resolver == nil {
		cfg.Resolver = timestamp.NewResolver(timestamp.SourceWallclock, nil)
	}
	return &Task{
		writer:     writer,
		cfg:        cfg,
		buffers:    buffer.NewManager(cfg.CapacityHint),
		logger:     logger,
		metrics:    metrics,
		partitions: make(map[record.TopicPartition]*partitionState),
		committed:  make(map[record.TopicPartition]int64),
	}
}

// Put appends rec to its partition's batch and writes the batch when the
// policy closes it. A partition whose last write failed rejects records with
// ErrPartitionFailed until a flush succeeds.
func (t *Task) Put(ctx context.Context, rec record.Record) error {
	for {
		st, err := t.state(rec.TopicPartition())
		if err != nil {
			return err
		}
		if done, err := t.put(ctx, st, rec); done {
			return err
		}
	}
}

// put reports done=false when st was released before its lock was taken;
// the caller then looks the partition up again.
func (t *Task) put(ctx context.Context, st *partitionState, rec record.Record) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.released {
		return false, nil
	}

	if st.pending != nil {
		return true, fmt.Errorf("%w: %s start_offset=%d", apperrors.ErrPartitionFailed, st.tp, st.pending.Batch.StartOffset)
	}

	if err := st.acc.Append(rec); err != nil {
		if t.metrics != nil && errors.Is(err, apperrors.ErrOffsetOrder) {
			t.metrics.IncOrderingViolations(st.tp.Topic, st.tp.Partition)
		}
		t.logger.Warn("rejected record",
			"topic", st.tp.Topic,
			"partition", st.tp.Partition,
			"offset", rec.Offset,
			"error", err,
		)
		return true, err
	}

	stats := st.acc.Stats()
	if t.metrics != nil {
		t.metrics.IncRecordsAppended(st.tp.Topic, st.tp.Partition)
		t.metrics.SetBufferStats(st.tp.Topic, st.tp.Partition, stats.RecordCount, stats.SizeBytes)
	}

	trigger, ok := t.cfg.Policy.AfterAppend(stats)
	if !ok {
		return true, nil
	}
	return true, t.closeAndWrite(ctx, st, trigger)
}

// Flush writes every partition's pending and open batch.
func (t *Task) Flush(ctx context.Context) error {
	return t.drain(ctx, t.snapshot(), rollover.TriggerExplicitFlush, false)
}

// Revoke flushes the given partitions and releases their accumulators.
// Released partitions are forgotten even when their flush fails; their
// uncommitted offsets are redelivered to the next owner.
func (t *Task) Revoke(ctx context.Context, tps ...record.TopicPartition) error {
	states := make([]*partitionState, 0, len(tps))
	t.mu.RLock()
	for _, tp := range tps {
		if st, ok := t.partitions[tp]; ok {
			states = append(states, st)
		}
	}
	t.mu.RUnlock()

	err := t.drain(ctx, states, rollover.TriggerPartitionRevoked, true)

	for _, st := range states {
		t.logger.Info("released partition", "topic", st.tp.Topic, "partition", st.tp.Partition)
	}
	return err
}

// Stop drains every partition and rejects further records. Failures from all
// partitions are joined.
func (t *Task) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	states := t.snapshot()
	err := t.drain(ctx, states, rollover.TriggerTaskStop, true)

	t.logger.Info("task stopped", "partitions", len(states), "error", err)
	return err
}

// Committed returns the last offset durably written for tp. It survives
// Revoke and Stop so the caller can mark offsets after the final flush, and
// is reset when the partition is assigned again.
func (t *Task) Committed(tp record.TopicPartition) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	offset, ok := t.committed[tp]
	return offset, ok
}

// Pending reports whether tp holds a batch whose write failed.
func (t *Task) Pending(tp record.TopicPartition) bool {
	t.mu.RLock()
	st, ok := t.partitions[tp]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pending != nil
}

// Partitions returns the partitions the task currently holds, sorted.
func (t *Task) Partitions() []record.TopicPartition {
	states := t.snapshot()
	tps := make([]record.TopicPartition, len(states))
	for i, st := range states {
		tps[i] = st.tp
	}
	return tps
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

func (t *Task) state(tp record.TopicPartition) (*partitionState, error) {
	t.mu.RLock()
	st, ok := t.partitions[tp]
	stopped := t.stopped
	t.mu.RUnlock()
	if stopped {
		return nil, apperrors.ErrTaskStopped
	}
	if ok {
		return st, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil, apperrors.ErrTaskStopped
	}
	if st, ok := t.partitions[tp]; ok {
		return st, nil
	}
	st = &partitionState{tp: tp, acc: t.buffers.Accumulator(tp)}
	t.partitions[tp] = st
	delete(t.committed, tp)
	t.logger.Debug("assigned partition", "topic", tp.Topic, "partition", tp.Partition)
	return st, nil
}

func (t *Task) snapshot() []*partitionState {
	t.mu.RLock()
	states := make([]*partitionState, 0, len(t.partitions))
	for _, st := range t.partitions {
		states = append(states, st)
	}
	t.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if states[i].tp.Topic != states[j].tp.Topic {
			return states[i].tp.Topic < states[j].tp.Topic
		}
		return states[i].tp.Partition < states[j].tp.Partition
	})
	return states
}

// drain flushes states concurrently, bounded by MaxConcurrentUploads. With
// release set each partition is released once its flush has finished.
func (t *Task) drain(ctx context.Context, states []*partitionState, trigger rollover.Trigger, release bool) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(t.cfg.MaxConcurrentUploads)

	for _, st := range states {
		g.Go(func() error {
			if err := t.flushPartition(ctx, st, trigger, release); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (t *Task) flushPartition(ctx context.Context, st *partitionState, trigger rollover.Trigger, release bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.released {
		return nil
	}
	if release {
		defer t.release(st)
	}

	if st.pending != nil {
		t.logger.Info("retrying failed batch",
			"topic", st.tp.Topic,
			"partition", st.tp.Partition,
			"start_offset", st.pending.Batch.StartOffset,
		)
		if err := t.write(ctx, st, *st.pending); err != nil {
			return err
		}
	}

	if !t.cfg.Policy.OnSignal(trigger) {
		return nil
	}
	return t.closeAndWrite(ctx, st, trigger)
}

// release must be called with st.mu held. A released state accepts no
// records and is never written again.
func (t *Task) release(st *partitionState) {
	st.released = true
	st.pending = nil
	t.mu.Lock()
	if t.partitions[st.tp] == st {
		delete(t.partitions, st.tp)
		t.buffers.Release(st.tp)
	}
	t.mu.Unlock()
}

// closeAndWrite must be called with st.mu held.
func (t *Task) closeAndWrite(ctx context.Context, st *partitionState, trigger rollover.Trigger) error {
	batch, ok := st.acc.Close()
	if t.metrics != nil {
		t.metrics.SetBufferStats(st.tp.Topic, st.tp.Partition, 0, 0)
	}
	if !ok {
		return nil
	}

	closed := ClosedBatch{
		Batch:     batch,
		Trigger:   trigger,
		Timestamp: t.cfg.Resolver.ResolveBatch(batch, t.cfg.Resolver.Now()),
	}
	if t.metrics != nil {
		t.metrics.IncBatchesClosed(st.tp.Topic, st.tp.Partition, trigger.String())
	}
	t.logger.Debug("closed batch",
		"topic", st.tp.Topic,
		"partition", st.tp.Partition,
		"start_offset", batch.StartOffset,
		"records", batch.Len(),
		"bytes", batch.SizeBytes,
		"trigger", trigger.String(),
	)
	return t.write(ctx, st, closed)
}

// write must be called with st.mu held. It takes t.mu, never the reverse.
func (t *Task) write(ctx context.Context, st *partitionState, closed ClosedBatch) error {
	key, _, err := t.writer.Write(ctx, closed)
	if err != nil {
		st.pending = &closed
		t.logger.Error("failed to write batch",
			"topic", st.tp.Topic,
			"partition", st.tp.Partition,
			"start_offset", closed.Batch.StartOffset,
			"key", key,
			"retryable", apperrors.IsRetryable(err),
			"error", err,
		)
		return err
	}

	st.pending = nil
	t.mu.Lock()
	t.committed[st.tp] = closed.Batch.LastOffset()
	t.mu.Unlock()
	return nil
}
