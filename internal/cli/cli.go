// Package cli builds the command line interface:
//
//	kafobjectsink run          consume topics and write objects
//	kafobjectsink validate     load and compile the configuration, then exit
//	kafobjectsink render-key   print the object key a batch would be written to
//
// Every command reads the YAML file given by --config, falling back to the
// CONFIG_PATH environment variable and then config/application.yaml.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jittakal/kafobjectsink/internal/config"
	"github.com/jittakal/kafobjectsink/internal/sink"
	"github.com/jittakal/kafobjectsink/internal/storage"
	"github.com/jittakal/kafobjectsink/internal/validator"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "config/application.yaml"

type options struct {
	configPath string
}

// configFile resolves the configuration path: flag, CONFIG_PATH, default.
func (o *options) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return DefaultConfigPath
}

// BuildCLI returns the root command.
func BuildCLI(version string) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "kafobjectsink",
		Short: "Write Kafka topic partitions to object storage",
		Long: `kafobjectsink consumes Kafka topics and writes each partition's records,
in offset order, as objects named from a key template such as
{{topic}}-{{partition}}-{{start_offset}}.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default $CONFIG_PATH or "+DefaultConfigPath+")")

	rootCmd.AddCommand(buildRunCommand(opts))
	rootCmd.AddCommand(buildValidateCommand(opts))
	rootCmd.AddCommand(buildRenderKeyCommand(opts))

	return rootCmd
}

// sinkFlags maps flags shared by run and validate onto configuration keys.
var sinkFlags = map[string]string{
	"bucket":      "sink.bucket",
	"backend":     "sink.backend",
	"prefix":      "sink.file.prefix",
	"compression": "sink.file.compression",
	"max-records": "sink.file.max_records",
	"log-level":   "observability.logging.level",
}

func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String("bucket", "", "bucket to write objects to (sink.bucket)")
	cmd.Flags().String("backend", "", "object store backend: gcs, s3, azure, file, memory (sink.backend)")
	cmd.Flags().String("prefix", "", "object key prefix (sink.file.prefix)")
	cmd.Flags().String("compression", "", "compression codec: none, gzip, snappy, zstd (sink.file.compression)")
	cmd.Flags().Int("max-records", 0, "records per object, 0 for unlimited (sink.file.max_records)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error (observability.logging.level)")
}

func buildRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start consuming and writing objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if err := loader.BindFlags(cmd.Flags(), sinkFlags); err != nil {
				return err
			}
			cfg, err := loader.Load(opts.configFile())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runSink(cmd.Context(), cfg)
		},
	}
	addSinkFlags(cmd)
	return cmd
}

func buildValidateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the resolved sink settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if err := loader.BindFlags(cmd.Flags(), sinkFlags); err != nil {
				return err
			}
			cfg, err := loader.Load(opts.configFile())
			if err != nil {
				return err
			}
			settings, err := config.BuildSinkSettings(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSetting(out, "backend", cfg.Sink.Backend)
			printSetting(out, "bucket", cfg.Sink.Bucket)
			printSetting(out, "prefix", cfg.Sink.File.Prefix)
			printSetting(out, "template", settings.Template.String())
			printSetting(out, "variables", settings.Template.Variables().String())
			printSetting(out, "compression", settings.Codec.Name())
			printSetting(out, "format", string(settings.Encoder.Format()))
			printSetting(out, "max_records", settings.Policy.MaxRecords)
			printSetting(out, "timestamp_source", settings.Resolver.Source())
			printSetting(out, "timestamp_timezone", settings.Resolver.Location().String())
			printSetting(out, "credentials", settings.Credentials.String())
			printSetting(out, "topics", cfg.Kafka.Consumer.Topics)
			for _, w := range settings.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintln(out, "configuration is valid")
			return nil
		},
	}
	addSinkFlags(cmd)
	return cmd
}

func printSetting(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "%-20s %v\n", name, value)
}

// renderFlags maps render-key flags onto configuration keys.
var renderFlags = map[string]string{
	"template":           "sink.file.template",
	"template-timestamp": "sink.file.template_timestamp",
	"prefix":             "sink.file.prefix",
	"compression":        "sink.file.compression",
	"timezone":           "sink.file.timestamp_timezone",
}

func buildRenderKeyCommand(opts *options) *cobra.Command {
	var (
		topic       string
		partition   int32
		startOffset int64
		at          string
	)

	cmd := &cobra.Command{
		Use:   "render-key",
		Short: "Print the object key for a batch",
		Long: `render-key prints the object key the sink would use for a batch of the
given partition starting at the given offset. Only the sink.file settings of
the configuration are used, so Kafka settings may be absent.`,
		Example: `  kafobjectsink render-key --topic orders --partition 3 --start-offset 1007
  kafobjectsink render-key --topic orders --partition 3 --start-offset 1007 \
    --template '{{topic}}/{{timestamp:unit=yyyy}}/{{partition}}-{{start_offset}}' \
    --template-timestamp --at 2024-03-09T17:45:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if err := loader.BindFlags(cmd.Flags(), renderFlags); err != nil {
				return err
			}
			cfg, err := loader.Read(opts.configFile())
			if err != nil {
				return err
			}
			if err := validator.Prefix("sink.file.prefix", cfg.Sink.File.Prefix); err != nil {
				return err
			}
			// The object store is never contacted.
			cfg.Sink.Backend = storage.BackendMemory

			settings, err := config.BuildSinkSettings(cfg)
			if err != nil {
				return err
			}

			ts := time.Now()
			if at != "" {
				ts, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}

			writer := sink.NewObjectWriter(settings.Writer, storage.NewMemoryStore(), nil, nil)
			key := writer.Key(sink.ClosedBatch{
				Batch: record.Batch{
					TopicPartition: record.TopicPartition{Topic: topic, Partition: partition},
					StartOffset:    startOffset,
				},
				Timestamp: ts,
			})
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "topic name")
	cmd.Flags().Int32Var(&partition, "partition", 0, "partition number")
	cmd.Flags().Int64Var(&startOffset, "start-offset", 0, "offset of the first record in the batch")
	cmd.Flags().StringVar(&at, "at", "", "batch timestamp in RFC 3339 (default now)")
	cmd.Flags().String("template", "", "key template (sink.file.template)")
	cmd.Flags().Bool("template-timestamp", false, "allow the timestamp variable (sink.file.template_timestamp)")
	cmd.Flags().String("prefix", "", "object key prefix (sink.file.prefix)")
	cmd.Flags().String("compression", "", "compression codec (sink.file.compression)")
	cmd.Flags().String("timezone", "", "zone used to render timestamps (sink.file.timestamp_timezone)")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}
