package dto

import (
	"time"

	"github.com/jittakal/kafobjectsink/internal/validator"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Parquet       ParquetConfig       `mapstructure:"parquet"`
	Avro          AvroConfig          `mapstructure:"avro"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers      []string       `mapstructure:"bootstrap_servers"`
	ClientID              string         `mapstructure:"client_id"`
	SecurityProtocol      string         `mapstructure:"security_protocol"`
	SASLMechanism         string         `mapstructure:"sasl_mechanism"`
	SASLUsername          string         `mapstructure:"sasl_username"`
	SASLPassword          string         `mapstructure:"sasl_password"`
	AWSRegion             string         `mapstructure:"aws_region"`
	TLSInsecureSkipVerify bool           `mapstructure:"tls_insecure_skip_verify"`
	Consumer              ConsumerConfig `mapstructure:"consumer"`
	DLQ                   DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID              string   `mapstructure:"group_id"`
	Topics               []string `mapstructure:"topics"`
	AutoOffsetReset      string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit     bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS    int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS     int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS  int      `mapstructure:"heartbeat_interval_ms"`
	RevokeTimeoutSeconds int      `mapstructure:"revoke_timeout_seconds"`
	RejoinBackoffMS      int      `mapstructure:"rejoin_backoff_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// SinkConfig contains the object store sink configuration
type SinkConfig struct {
	Backend     string            `mapstructure:"backend"`
	Bucket      string            `mapstructure:"bucket"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	File        FileConfig        `mapstructure:"file"`
	Format      FormatConfig      `mapstructure:"format"`
	GCS         GCSConfig         `mapstructure:"gcs"`
	S3          S3Config          `mapstructure:"s3"`
	Azure       AzureConfig       `mapstructure:"azure"`
	Local       LocalConfig       `mapstructure:"local"`
}

// CredentialsConfig selects the GCS credentials. At most one field may be set.
type CredentialsConfig struct {
	Path string `mapstructure:"path"`
	JSON string `mapstructure:"json"`
}

// FileConfig controls object naming, compression and rollover
type FileConfig struct {
	Prefix            string `mapstructure:"prefix"`
	Template          string `mapstructure:"template"`
	TemplateTimestamp bool   `mapstructure:"template_timestamp"`
	Compression       string `mapstructure:"compression"`
	MaxRecords        int    `mapstructure:"max_records"`
	TimestampTimezone string `mapstructure:"timestamp_timezone"`
	TimestampSource   string `mapstructure:"timestamp_source"`
}

// FormatConfig controls the object body layout
type FormatConfig struct {
	Type          string   `mapstructure:"type"`
	Fields        []string `mapstructure:"fields"`
	ValueEncoding string   `mapstructure:"value_encoding"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Endpoint  string `mapstructure:"endpoint"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Endpoint    string `mapstructure:"endpoint"`
}

// LocalConfig contains local filesystem configuration
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ParquetConfig contains Parquet format settings
type ParquetConfig struct {
	Compression string `mapstructure:"compression"`
}

// AvroConfig contains Avro format settings
type AvroConfig struct {
	Codec string `mapstructure:"codec"`
}

// ProcessingConfig contains processing settings
type ProcessingConfig struct {
	MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads"`
	BufferCapacityHint   int `mapstructure:"buffer_capacity_hint"`
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// FlushInterval returns the periodic flush interval. Zero disables it.
func (c ProcessingConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validator.First(
		validator.Required("application.name", c.Application.Name),
		c.Kafka.Validate(),
		c.Sink.Validate(),
		validator.NonNegative("processing.max_concurrent_uploads", c.Processing.MaxConcurrentUploads),
		validator.NonNegative("processing.flush_interval_seconds", c.Processing.FlushIntervalSeconds),
		validator.Port("observability.health.port", c.Observability.Health.Port),
		c.Observability.Metrics.Validate(),
		validator.NonNegative("shutdown.grace_period_seconds", c.Shutdown.GracePeriodSeconds),
	)
}

// Validate validates Kafka configuration.
func (c *KafkaConfig) Validate() error {
	return validator.First(
		validator.RequiredList("kafka.bootstrap_servers", c.BootstrapServers),
		validator.RequiredList("kafka.consumer.topics", c.Consumer.Topics),
		validator.Required("kafka.consumer.group_id", c.Consumer.GroupID),
		validator.OneOf("kafka.consumer.auto_offset_reset", c.Consumer.AutoOffsetReset, []string{"earliest", "latest"}),
	)
}

// Validate validates the sink settings that need no parsing. Templates,
// codecs, zones and formats are checked when they are compiled.
func (c *SinkConfig) Validate() error {
	if err := validator.First(
		validator.Required("sink.bucket", c.Bucket),
		validator.Prefix("sink.file.prefix", c.File.Prefix),
		validator.NonNegative("sink.file.max_records", c.File.MaxRecords),
	); err != nil {
		return err
	}

	switch c.Backend {
	case "s3":
		return c.S3.Validate()
	case "azure":
		return c.Azure.Validate()
	case "file":
		return c.Local.Validate()
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	return validator.Required("sink.s3.region", c.Region)
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	return validator.Required("sink.azure.account_name", c.AccountName)
}

// Validate validates local filesystem configuration.
func (c *LocalConfig) Validate() error {
	return validator.Required("sink.local.base_path", c.BasePath)
}

// Validate validates metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validator.Port("observability.metrics.port", c.Port)
}
