// Package kafka implements the Kafka record source and DLQ producer.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/consumer"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ consumer.Consumer = (*SaramaConsumer)(nil)
)

// DefaultRevokeTimeout bounds the final flush of a partition whose claim ended.
const DefaultRevokeTimeout = 30 * time.Second

// DefaultRejoinBackoff is the pause before rejoining after a failed session.
// It matches sarama's Consumer.Group.Rebalance.Retry.Backoff default.
const DefaultRejoinBackoff = 2 * time.Second

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers      []string
	GroupID               string
	ClientID              string
	SecurityProtocol      string
	SASLMechanism         string
	SASLUsername          string
	SASLPassword          string
	AWSRegion             string
	TLSInsecureSkipVerify bool
	AutoOffsetReset       string
	EnableAutoCommit      bool
	MaxPollIntervalMS     int
	SessionTimeoutMS      int
	HeartbeatIntervalMS   int
	RevokeTimeout         time.Duration
	RejoinBackoff         time.Duration
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncRebalances(groupID string)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveRebalanceDuration(groupID string, duration float64)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	SetPartitionsAssigned(topic string, count float64)
}

// SaramaConsumer implements the consumer.Consumer interface using the Sarama library.
// Each claimed partition is driven by its own ConsumeClaim goroutine, which
// hands records to the sink in offset order and marks offsets once the sink
// has written them.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector
	dlq           consumer.DLQPublisher
	topics        []string
	ready         chan struct{}
	readyOnce     sync.Once
	mu            sync.RWMutex
	closed        bool
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(
	config ConsumerConfig,
	dlq consumer.DLQPublisher,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	saramaConfig, err := newSaramaConfig(config)
	if err != nil {
		return nil, err
	}

	consumerGroup, err := sarama.NewConsumerGroup(
		config.BootstrapServers,
		config.GroupID,
		saramaConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"session_timeout_ms", config.SessionTimeoutMS,
		"max_poll_interval_ms", config.MaxPollIntervalMS,
	)

	return NewSaramaConsumerWithGroup(consumerGroup, config, dlq, logger, metrics), nil
}

// NewSaramaConsumerWithGroup wraps an existing consumer group.
func NewSaramaConsumerWithGroup(
	group sarama.ConsumerGroup,
	config ConsumerConfig,
	dlq consumer.DLQPublisher,
	logger *slog.Logger,
	metrics MetricsCollector,
) *SaramaConsumer {
	if config.RevokeTimeout <= 0 {
		config.RevokeTimeout = DefaultRevokeTimeout
	}
	if config.RejoinBackoff <= 0 {
		config.RejoinBackoff = DefaultRejoinBackoff
	}
	return &SaramaConsumer{
		consumerGroup: group,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		dlq:           dlq,
		ready:         make(chan struct{}),
	}
}

func newSaramaConfig(config ConsumerConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V2_8_0_0
	if config.ClientID != "" {
		saramaConfig.ClientID = config.ClientID
	}
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = config.EnableAutoCommit
	if config.RejoinBackoff > 0 {
		saramaConfig.Consumer.Group.Rebalance.Retry.Backoff = config.RejoinBackoff
	}

	if config.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	}
	if config.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond
	}

	// A batch write happens inside the claim loop, so processing time covers an upload.
	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	} else {
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	saramaConfig.Consumer.Return.Errors = true

	if err := configureSecurity(saramaConfig, config); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return saramaConfig, nil
}

// Subscribe subscribes to the specified topics.
func (c *SaramaConsumer) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrConsumerClosed
	}

	c.topics = topics
	c.logger.Info("subscribed to topics", "topics", topics)
	return nil
}

// Consume joins the group and drives sink until ctx is cancelled. A session
// that ends because a partition failed is rejoined; the failed partition
// resumes from its last marked offset.
func (c *SaramaConsumer) Consume(ctx context.Context, sink consumer.RecordSink) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return apperrors.ErrConsumerClosed
	}
	topics := c.topics
	c.mu.RUnlock()

	go c.drainErrors(ctx)

	for {
		sessionCtx, cancel := context.WithCancel(ctx)
		handler := newConsumerGroupHandler(c, sink, cancel)

		err := c.consumerGroup.Consume(sessionCtx, topics, handler)
		cancel()

		if ctx.Err() != nil {
			c.logger.Info("consumer context cancelled")
			return nil
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return apperrors.ErrConsumerClosed
			}
			c.logger.Error("consumer group error", "error", err)
			return fmt.Errorf("consumer group session failed: %w", err)
		}
		if handler.failed() {
			c.logger.Warn("rejoining consumer group after partition failure",
				"backoff", c.config.RejoinBackoff,
			)
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled")
				return nil
			case <-time.After(c.config.RejoinBackoff):
			}
		}
	}
}

func (c *SaramaConsumer) drainErrors(ctx context.Context) {
	errs := c.consumerGroup.Errors()
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			c.logger.Error("consumer group reported error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Ready is closed once the first session has been set up.
func (c *SaramaConsumer) Ready() <-chan struct{} {
	return c.ready
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing kafka consumer")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}

	c.logger.Info("kafka consumer closed")
	return nil
}

// IsClosed reports whether Close has been called.
func (c *SaramaConsumer) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": fmt.Sprintf("%d", expiryMs),
		},
	}, nil
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	switch autoOffsetReset {
	case "earliest":
		return sarama.OffsetOldest
	case "latest":
		return sarama.OffsetNewest
	default:
		return sarama.OffsetNewest
	}
}

func configureSecurity(config *sarama.Config, kafkaConfig ConsumerConfig) error {
	switch kafkaConfig.SecurityProtocol {
	case "", "PLAINTEXT":
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true

		switch kafkaConfig.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
			config.Net.SASL.User = kafkaConfig.SASLUsername
			config.Net.SASL.Password = kafkaConfig.SASLPassword

		case "SCRAM-SHA-256", "SCRAM-SHA-512":
			mechanism, generator, err := scramMechanism(kafkaConfig.SASLMechanism)
			if err != nil {
				return err
			}
			config.Net.SASL.Mechanism = mechanism
			config.Net.SASL.User = kafkaConfig.SASLUsername
			config.Net.SASL.Password = kafkaConfig.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = generator

		case "AWS_MSK_IAM":
			config.Net.SASL.Mechanism = sarama.SASLTypeOAuth

			// Sarama validation requires a user and password for OAUTHBEARER.
			config.Net.SASL.User = "token"
			config.Net.SASL.Password = "token"

			region := kafkaConfig.AWSRegion
			if region == "" {
				region = "us-east-1"
			}
			config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: region}

		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", kafkaConfig.SASLMechanism)
		}

		if kafkaConfig.SecurityProtocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
			config.Net.TLS.Config = tlsConfig(kafkaConfig)
		}

	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig(kafkaConfig)

	default:
		return fmt.Errorf("unsupported security protocol: %s", kafkaConfig.SecurityProtocol)
	}

	return nil
}

func tlsConfig(kafkaConfig ConsumerConfig) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: kafkaConfig.TLSInsecureSkipVerify,
	}
}
