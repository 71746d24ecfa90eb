package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/consumer"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// consumerGroupHandler implements sarama.ConsumerGroupHandler for one session.
type consumerGroupHandler struct {
	consumer       *SaramaConsumer
	sink           consumer.RecordSink
	abort          context.CancelFunc
	aborted        atomic.Bool
	rebalanceStart time.Time
	mu             sync.Mutex
}

func newConsumerGroupHandler(c *SaramaConsumer, sink consumer.RecordSink, abort context.CancelFunc) *consumerGroupHandler {
	return &consumerGroupHandler{consumer: c, sink: sink, abort: abort}
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.rebalanceStart = time.Now()
	h.mu.Unlock()

	h.consumer.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if h.consumer.metrics != nil {
		h.consumer.metrics.IncRebalances(h.consumer.config.GroupID)
		for topic, partitions := range session.Claims() {
			h.consumer.metrics.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}

	h.consumer.readyOnce.Do(func() {
		close(h.consumer.ready)
	})
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	start := h.rebalanceStart
	h.mu.Unlock()

	if h.consumer.metrics != nil && !start.IsZero() {
		h.consumer.metrics.ObserveRebalanceDuration(h.consumer.config.GroupID, time.Since(start).Seconds())
	}

	h.consumer.logger.Info("consumer group session cleanup",
		"member_id", session.MemberID(),
	)
	return nil
}

// ConsumeClaim feeds one partition into the sink. When the claim ends the
// partition is revoked from the sink, which flushes its open batch, and the
// resulting offset is marked before returning.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	tp := record.TopicPartition{Topic: claim.Topic(), Partition: claim.Partition()}
	marked := int64(-1)

	h.consumer.logger.Info("started consuming partition",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"initial_offset", claim.InitialOffset(),
	)

	defer h.release(session, tp, &marked)

	ctx := session.Context()
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			rec := toRecord(message)
			if h.consumer.metrics != nil {
				h.consumer.metrics.IncMessagesConsumed(rec.Topic, rec.Partition)
			}

			if err := h.sink.Put(ctx, rec); err != nil {
				return h.fail(ctx, rec, err)
			}
			h.mark(session, tp, &marked)

		case <-ctx.Done():
			h.consumer.logger.Info("session context done, stopping partition consumption",
				"topic", tp.Topic,
				"partition", tp.Partition,
			)
			return nil
		}
	}
}

// fail handles a record the sink could not take. Ordering violations go to
// the DLQ; every failure ends the session so the partition restarts from its
// last marked offset.
func (h *consumerGroupHandler) fail(ctx context.Context, rec record.Record, err error) error {
	logger := h.consumer.logger.With(
		"topic", rec.Topic,
		"partition", rec.Partition,
		"offset", rec.Offset,
	)

	if errors.Is(err, apperrors.ErrOffsetOrder) && h.consumer.dlq != nil {
		if dlqErr := h.consumer.dlq.Publish(ctx, rec, err.Error()); dlqErr != nil {
			logger.Error("failed to publish record to DLQ", "error", dlqErr)
		}
	}

	logger.Error("aborting partition", "error", err)
	h.aborted.Store(true)
	h.abort()
	return fmt.Errorf("partition %s aborted at offset %d: %w", rec.TopicPartition(), rec.Offset, err)
}

func (h *consumerGroupHandler) failed() bool {
	return h.aborted.Load()
}

func (h *consumerGroupHandler) release(session sarama.ConsumerGroupSession, tp record.TopicPartition, marked *int64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.consumer.config.RevokeTimeout)
	defer cancel()

	if err := h.sink.Revoke(ctx, tp); err != nil {
		h.consumer.logger.Error("failed to flush revoked partition",
			"topic", tp.Topic,
			"partition", tp.Partition,
			"error", err,
		)
	}
	h.mark(session, tp, marked)
}

// mark advances the group offset to one past the last written record.
func (h *consumerGroupHandler) mark(session sarama.ConsumerGroupSession, tp record.TopicPartition, marked *int64) {
	committed, ok := h.sink.Committed(tp)
	if !ok || committed <= *marked {
		return
	}

	startTime := time.Now()
	session.MarkOffset(tp.Topic, tp.Partition, committed+1, "")
	if !h.consumer.config.EnableAutoCommit {
		session.Commit()
	}
	*marked = committed

	if h.consumer.metrics != nil {
		h.consumer.metrics.ObserveCommitLatency(tp.Topic, tp.Partition, time.Since(startTime).Seconds())
		h.consumer.metrics.IncOffsetCommits(tp.Topic, tp.Partition, "success")
	}
	h.consumer.logger.Debug("marked offset",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"offset", committed+1,
	)
}

// toRecord converts a sarama message, keeping header order.
func toRecord(message *sarama.ConsumerMessage) record.Record {
	rec := record.Record{
		Topic:     message.Topic,
		Partition: message.Partition,
		Offset:    message.Offset,
		Timestamp: message.Timestamp,
		Key:       message.Key,
		Value:     message.Value,
	}
	if len(message.Headers) > 0 {
		rec.Headers = make([]record.Header, 0, len(message.Headers))
		for _, header := range message.Headers {
			if header == nil {
				continue
			}
			rec.Headers = append(rec.Headers, record.Header{Key: string(header.Key), Value: header.Value})
		}
	}
	return rec
}
