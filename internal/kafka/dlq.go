package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/consumer"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// DLQHeader is a record header carried in a DLQ message.
type DLQHeader struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// DLQRecord is the message value published to the dead letter queue.
type DLQRecord struct {
	OriginalKey       []byte      `json:"original_key,omitempty"`
	OriginalValue     []byte      `json:"original_value,omitempty"`
	OriginalHeaders   []DLQHeader `json:"original_headers,omitempty"`
	OriginalTopic     string      `json:"original_topic"`
	OriginalPartition int32       `json:"original_partition"`
	OriginalOffset    int64       `json:"original_offset"`
	OriginalTimestamp time.Time   `json:"original_timestamp"`
	FailureReason     string      `json:"failure_reason"`
	FailureTimestamp  time.Time   `json:"failure_timestamp"`
	ProcessorID       string      `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
}

// TopicFor returns the DLQ topic of a source topic.
func (c DLQConfig) TopicFor(topic string) string {
	return topic + c.TopicSuffix
}

// DLQPublisher publishes rejected records to a dead letter queue.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	mu          sync.RWMutex
	closed      bool
	processorID string
	now         func() time.Time
}

// NewDLQPublisher creates a new DLQ publisher.
func NewDLQPublisher(
	bootstrapServers []string,
	securityConfig ConsumerConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return NewDLQPublisherWithProducer(nil, dlqConfig, logger, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)

	return NewDLQPublisherWithProducer(producer, dlqConfig, logger, processorID), nil
}

// NewDLQPublisherWithProducer creates a DLQ publisher around an existing producer.
func NewDLQPublisherWithProducer(
	producer sarama.SyncProducer,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	processorID string,
) *DLQPublisher {
	return &DLQPublisher{
		producer:    producer,
		config:      dlqConfig,
		logger:      logger,
		processorID: processorID,
		now:         time.Now,
	}
}

// Publish publishes a rejected record to the DLQ. The original key is kept as
// the message key so the DLQ partitions like the source topic.
func (p *DLQPublisher) Publish(ctx context.Context, rec record.Record, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return apperrors.ErrConsumerClosed
	}

	if !p.config.Enabled || p.producer == nil {
		p.logger.Debug("DLQ disabled, skipping publish")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	dlqTopic := p.config.TopicFor(rec.Topic)

	dlqRecord := DLQRecord{
		OriginalKey:       rec.Key,
		OriginalValue:     rec.Value,
		OriginalTopic:     rec.Topic,
		OriginalPartition: rec.Partition,
		OriginalOffset:    rec.Offset,
		OriginalTimestamp: rec.Timestamp,
		FailureReason:     reason,
		FailureTimestamp:  p.now().UTC(),
		ProcessorID:       p.processorID,
	}
	for _, h := range rec.Headers {
		dlqRecord.OriginalHeaders = append(dlqRecord.OriginalHeaders, DLQHeader{Key: h.Key, Value: h.Value})
	}

	dlqData, err := json.Marshal(dlqRecord)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("original_topic"), Value: []byte(rec.Topic)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: p.now(),
	}
	if rec.Key != nil {
		msg.Key = sarama.ByteEncoder(rec.Key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"offset", rec.Offset,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.logger.Info("published record to DLQ",
		"dlq_topic", dlqTopic,
		"dlq_partition", partition,
		"dlq_offset", offset,
		"topic", rec.Topic,
		"partition", rec.Partition,
		"offset", rec.Offset,
		"reason", reason,
	)

	return nil
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}
