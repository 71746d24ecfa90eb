package config

import (
	"time"

	"github.com/jittakal/kafobjectsink/internal/codec"
	"github.com/jittakal/kafobjectsink/internal/config/dto"
	"github.com/jittakal/kafobjectsink/internal/credentials"
	"github.com/jittakal/kafobjectsink/internal/encoder"
	"github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/internal/kafka"
	"github.com/jittakal/kafobjectsink/internal/observability"
	"github.com/jittakal/kafobjectsink/internal/rollover"
	"github.com/jittakal/kafobjectsink/internal/server"
	"github.com/jittakal/kafobjectsink/internal/sink"
	"github.com/jittakal/kafobjectsink/internal/storage"
	"github.com/jittakal/kafobjectsink/internal/template"
	"github.com/jittakal/kafobjectsink/internal/timestamp"
	pkgcodec "github.com/jittakal/kafobjectsink/pkg/codec"
	pkgencoder "github.com/jittakal/kafobjectsink/pkg/encoder"
)

// SinkSettings holds the compiled sink configuration.
type SinkSettings struct {
	Template    *template.Template
	Codec       pkgcodec.Codec
	Resolver    *timestamp.Resolver
	Credentials credentials.Source
	Encoder     pkgencoder.Encoder
	Policy      rollover.Policy
	Storage     storage.Config
	Writer      sink.WriterConfig
	Task        sink.TaskConfig

	// Warnings lists accepted settings that weaken key compatibility.
	Warnings []string
}

// TemplateTimestampWarning is reported when sink.file.template_timestamp is enabled.
const TemplateTimestampWarning = "sink.file.template_timestamp is enabled: keys may carry a timestamp " +
	"and only {{topic}}, {{partition}} and {{start_offset}} keys are supported by key parsers"

// BuildSinkSettings compiles the sink section. Every failure is a
// *errors.ConfigError naming the setting.
func BuildSinkSettings(cfg *dto.ApplicationConfig, opts ...timestamp.Option) (*SinkSettings, error) {
	file := cfg.Sink.File

	tmpl, err := compileTemplate(file)
	if err != nil {
		return nil, errors.NewConfigError("sink.file.template", file.Template, err)
	}

	c, err := codec.Resolve(file.Compression)
	if err != nil {
		return nil, errors.NewConfigError("sink.file.compression", file.Compression, err)
	}

	loc, err := timestamp.LoadLocation(file.TimestampTimezone)
	if err != nil {
		return nil, errors.NewConfigError("sink.file.timestamp_timezone", file.TimestampTimezone, err)
	}

	source, err := timestamp.ParseSource(file.TimestampSource)
	if err != nil {
		return nil, errors.NewConfigError("sink.file.timestamp_source", file.TimestampSource, err)
	}

	creds, err := credentials.NewSource(cfg.Sink.Credentials.Path, cfg.Sink.Credentials.JSON)
	if err != nil {
		return nil, errors.NewConfigError("sink.credentials", cfg.Sink.Credentials.Path, err)
	}

	enc, err := buildEncoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := validateBackend(cfg.Sink.Backend); err != nil {
		return nil, err
	}

	resolver := timestamp.NewResolver(source, loc, opts...)
	policy := rollover.NewPolicy(file.MaxRecords)

	var warnings []string
	if file.TemplateTimestamp {
		warnings = append(warnings, TemplateTimestampWarning)
	}

	return &SinkSettings{
		Warnings:    warnings,
		Template:    tmpl,
		Codec:       c,
		Resolver:    resolver,
		Credentials: creds,
		Encoder:     enc,
		Policy:      policy,
		Storage:     storageConfig(cfg, creds),
		Writer: sink.WriterConfig{
			Prefix:   file.Prefix,
			Template: tmpl,
			Codec:    c,
			Encoder:  enc,
			Location: loc,
		},
		Task: sink.TaskConfig{
			Policy:               policy,
			Resolver:             resolver,
			MaxConcurrentUploads: cfg.Processing.MaxConcurrentUploads,
			CapacityHint:         cfg.Processing.BufferCapacityHint,
		},
	}, nil
}

func compileTemplate(file dto.FileConfig) (*template.Template, error) {
	tmpl := file.Template
	if tmpl == "" {
		tmpl = template.DefaultTemplate
	}
	if file.TemplateTimestamp {
		return template.CompileWith(tmpl,
			template.TopicPartitionStartOffset,
			template.TopicPartitionStartOffsetTimestamp,
		)
	}
	return template.Compile(tmpl)
}

func buildEncoder(cfg *dto.ApplicationConfig) (pkgencoder.Encoder, error) {
	format := cfg.Sink.Format

	f, err := encoder.ParseFormat(format.Type)
	if err != nil {
		return nil, errors.NewConfigError("sink.format.type", format.Type, err)
	}
	fields, err := encoder.ParseFields(format.Fields)
	if err != nil {
		return nil, errors.NewConfigError("sink.format.fields", format.Fields, err)
	}
	valueEncoding, err := encoder.ParseValueEncoding(format.ValueEncoding)
	if err != nil {
		return nil, errors.NewConfigError("sink.format.value_encoding", format.ValueEncoding, err)
	}

	enc, err := encoder.New(encoder.Options{
		Format:             f,
		Fields:             fields,
		ValueEncoding:      valueEncoding,
		AvroCodec:          cfg.Avro.Codec,
		ParquetCompression: cfg.Parquet.Compression,
	})
	if err != nil {
		if f == pkgencoder.FormatAvro {
			return nil, errors.NewConfigError("avro.codec", cfg.Avro.Codec, err)
		}
		return nil, errors.NewConfigError("sink.format.type", format.Type, err)
	}
	return enc, nil
}

func validateBackend(backend string) error {
	for _, b := range storage.Backends() {
		if b == backend {
			return nil
		}
	}
	return errors.NewConfigError("sink.backend", backend, errors.ErrUnsupportedBackend)
}

func storageConfig(cfg *dto.ApplicationConfig, creds credentials.Source) storage.Config {
	s := cfg.Sink
	return storage.Config{
		Backend:     s.Backend,
		Bucket:      s.Bucket,
		Credentials: creds,
		GCS: storage.GCSConfig{
			ProjectID: s.GCS.ProjectID,
			Endpoint:  s.GCS.Endpoint,
		},
		S3: storage.S3Config{
			Region:       s.S3.Region,
			Endpoint:     s.S3.Endpoint,
			UsePathStyle: s.S3.UsePathStyle,
			SSEEnabled:   s.S3.SSEEnabled,
			SSEKMSKeyID:  s.S3.SSEKMSKeyID,
		},
		Azure: storage.AzureConfig{
			AccountName: s.Azure.AccountName,
			AccountKey:  s.Azure.AccountKey,
			Endpoint:    s.Azure.Endpoint,
		},
		File: storage.FileConfig{BasePath: s.Local.BasePath},
	}
}

// KafkaConsumerConfig maps the kafka section onto the consumer settings.
func KafkaConsumerConfig(cfg *dto.ApplicationConfig) kafka.ConsumerConfig {
	k := cfg.Kafka
	return kafka.ConsumerConfig{
		BootstrapServers:      k.BootstrapServers,
		GroupID:               k.Consumer.GroupID,
		ClientID:              k.ClientID,
		SecurityProtocol:      k.SecurityProtocol,
		SASLMechanism:         k.SASLMechanism,
		SASLUsername:          k.SASLUsername,
		SASLPassword:          k.SASLPassword,
		AWSRegion:             k.AWSRegion,
		TLSInsecureSkipVerify: k.TLSInsecureSkipVerify,
		AutoOffsetReset:       k.Consumer.AutoOffsetReset,
		EnableAutoCommit:      k.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:     k.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:      k.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS:   k.Consumer.HeartbeatIntervalMS,
		RevokeTimeout:         time.Duration(k.Consumer.RevokeTimeoutSeconds) * time.Second,
		RejoinBackoff:         time.Duration(k.Consumer.RejoinBackoffMS) * time.Millisecond,
	}
}

// DLQConfig maps the kafka.dlq section.
func DLQConfig(cfg *dto.ApplicationConfig) kafka.DLQConfig {
	return kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
	}
}

// ServerConfig maps the health and metrics sections.
func ServerConfig(cfg *dto.ApplicationConfig) server.Config {
	o := cfg.Observability
	return server.Config{
		HealthPort:     o.Health.Port,
		LivenessPath:   o.Health.LivenessPath,
		ReadinessPath:  o.Health.ReadinessPath,
		MetricsEnabled: o.Metrics.Enabled,
		MetricsPort:    o.Metrics.Port,
		MetricsPath:    o.Metrics.Path,
	}
}

// LoggingConfig maps the logging section and tags logs with the application.
func LoggingConfig(cfg *dto.ApplicationConfig) observability.LoggingConfig {
	l := cfg.Observability.Logging
	return observability.LoggingConfig{
		Level:   l.Level,
		Format:  l.Format,
		Output:  l.Output,
		AppName: cfg.Application.Name,
		Version: cfg.Application.Version,
	}
}
