// Package config loads the application configuration with viper and turns the
// validated values into typed component settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jittakal/kafobjectsink/internal/config/dto"
	"github.com/jittakal/kafobjectsink/internal/template"
	"github.com/jittakal/kafobjectsink/internal/timestamp"
)

// EnvPrefix prefixes every environment override, e.g. APP_SINK_BUCKET.
const EnvPrefix = "APP"

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlags binds command line flags to configuration keys. Flag names use
// dashes where keys use dots, e.g. --sink-bucket for sink.bucket. A flag only
// overrides the file when it is set explicitly.
func (l *Loader) BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flagName, key := range keys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flagName, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	config, err := l.Read(path)
	if err != nil {
		return nil, err
	}

	if err := l.Validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Read loads configuration like Load but skips validation. Commands that use
// only part of the configuration validate that part themselves.
func (l *Loader) Read(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only values containing ${...} are expanded.
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kafka-object-sink")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.bootstrap_servers", []string{})
	l.v.SetDefault("kafka.client_id", "kafka-object-sink")
	l.v.SetDefault("kafka.security_protocol", "SASL_SSL")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.sasl_username", "")
	l.v.SetDefault("kafka.sasl_password", "")
	l.v.SetDefault("kafka.aws_region", "")
	l.v.SetDefault("kafka.tls_insecure_skip_verify", false)
	l.v.SetDefault("kafka.consumer.group_id", "")
	l.v.SetDefault("kafka.consumer.topics", []string{})
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.consumer.revoke_timeout_seconds", 30)
	l.v.SetDefault("kafka.consumer.rejoin_backoff_ms", 2000)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")

	// Sink defaults
	l.v.SetDefault("sink.backend", "gcs")
	l.v.SetDefault("sink.bucket", "")
	l.v.SetDefault("sink.credentials.path", "")
	l.v.SetDefault("sink.credentials.json", "")
	l.v.SetDefault("sink.file.prefix", "")
	l.v.SetDefault("sink.file.template", template.DefaultTemplate)
	l.v.SetDefault("sink.file.template_timestamp", false)
	l.v.SetDefault("sink.file.compression", "none")
	l.v.SetDefault("sink.file.max_records", 0)
	l.v.SetDefault("sink.file.timestamp_timezone", timestamp.DefaultTimezone)
	l.v.SetDefault("sink.file.timestamp_source", string(timestamp.SourceWallclock))
	l.v.SetDefault("sink.format.type", "raw")
	l.v.SetDefault("sink.format.fields", []string{"value"})
	l.v.SetDefault("sink.format.value_encoding", "base64")
	l.v.SetDefault("sink.s3.use_path_style", false)
	l.v.SetDefault("sink.s3.sse_enabled", true)

	// Format internals
	l.v.SetDefault("parquet.compression", "snappy")
	l.v.SetDefault("avro.codec", "snappy")

	// Processing defaults
	l.v.SetDefault("processing.max_concurrent_uploads", 5)
	l.v.SetDefault("processing.buffer_capacity_hint", 0)
	l.v.SetDefault("processing.flush_interval_seconds", 60)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration. Besides the structural checks it
// compiles every sink setting, so a configuration that passes here starts.
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	_, err := BuildSinkSettings(config)
	return err
}
