package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/kafobjectsink/internal/config"
	"github.com/jittakal/kafobjectsink/internal/config/dto"
	"github.com/jittakal/kafobjectsink/internal/kafka"
	"github.com/jittakal/kafobjectsink/internal/observability"
	"github.com/jittakal/kafobjectsink/internal/server"
	"github.com/jittakal/kafobjectsink/internal/sink"
	"github.com/jittakal/kafobjectsink/internal/storage"
	"github.com/jittakal/kafobjectsink/pkg/consumer"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// recordSource is the consumer as the run loop uses it.
type recordSource interface {
	consumer.Consumer
	IsClosed() bool
}

// app holds the wired components of a running sink.
type app struct {
	cfg      *dto.ApplicationConfig
	logger   *slog.Logger
	source   recordSource
	task     *sink.Task
	store    pkgstorage.ObjectStore
	server   *server.Server
	cleanups []func() error
}

func runSink(ctx context.Context, cfg *dto.ApplicationConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(config.LoggingConfig(cfg))
	logger.Info("starting kafka object sink",
		"environment", cfg.Application.Environment,
		"backend", cfg.Sink.Backend,
		"bucket", cfg.Sink.Bucket,
		"topics", cfg.Kafka.Consumer.Topics,
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

// newApp wires the object store, sink task, DLQ, consumer and HTTP servers.
// On error every component created so far is closed.
func newApp(ctx context.Context, cfg *dto.ApplicationConfig, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	settings, err := config.BuildSinkSettings(a.cfg)
	if err != nil {
		return err
	}
	for _, w := range settings.Warnings {
		a.logger.Warn(w)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	a.store, err = storage.New(ctx, settings.Storage, a.logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	a.addCleanup("object-store", a.store.Close)

	writer := sink.NewObjectWriter(settings.Writer, a.store, a.logger, metrics)
	a.task = sink.NewTask(settings.Task, writer, a.logger, metrics)

	consumerConfig := config.KafkaConsumerConfig(a.cfg)
	dlq, err := kafka.NewDLQPublisher(a.cfg.Kafka.BootstrapServers, consumerConfig, config.DLQConfig(a.cfg), a.logger, a.cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	a.addCleanup("dlq-publisher", dlq.Close)

	source, err := kafka.NewSaramaConsumer(consumerConfig, dlq, a.logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	a.source = source
	a.addCleanup("kafka-consumer", source.Close)

	a.server = server.NewServer(
		config.ServerConfig(a.cfg),
		server.NewSinkHealth(a.task, source),
		registry,
		a.logger,
	)
	return nil
}

func (a *app) addCleanup(name string, fn func() error) {
	a.cleanups = append(a.cleanups, fn)
	a.logger.Debug("registered cleanup", "component", name)
}

// close runs the cleanups in reverse registration order.
func (a *app) close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

// run consumes until ctx is cancelled or the consumer fails, then shuts down:
// the consumer stops and revokes its partitions, the task writes whatever is
// left, and the remaining components close.
func (a *app) run(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return errors.Join(fmt.Errorf("failed to start HTTP server: %w", err), a.close())
	}

	if err := a.source.Subscribe(ctx, a.cfg.Kafka.Consumer.Topics); err != nil {
		return errors.Join(fmt.Errorf("failed to subscribe to topics: %w", err), a.shutdown())
	}

	a.logger.Info("application started successfully")

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(consumeCtx)
	g.Go(func() error {
		defer cancel()
		return a.source.Consume(gctx, a.task)
	})
	if interval := a.cfg.Processing.FlushInterval(); interval > 0 {
		g.Go(func() error {
			a.flushLoop(gctx, interval)
			return nil
		})
	}

	runErr := g.Wait()
	if ctx.Err() != nil {
		a.logger.Info("received termination signal")
	}
	if runErr != nil {
		a.logger.Error("consume error", "error", runErr)
	}

	return errors.Join(runErr, a.shutdown())
}

// flushLoop closes every open batch on each tick.
func (a *app) flushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.task.Flush(ctx); err != nil {
				a.logger.Warn("periodic flush failed", "error", err)
			}
		}
	}
}

func (a *app) shutdown() error {
	a.logger.Info("initiating graceful shutdown")

	stopCtx := context.Background()
	if grace := a.cfg.Shutdown.GracePeriod(); grace > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, grace)
		defer cancel()
	}

	var errs []error
	if err := a.task.Stop(stopCtx); err != nil {
		a.logger.Error("failed to write remaining batches", "error", err)
		errs = append(errs, err)
	}
	if err := a.server.Shutdown(stopCtx); err != nil {
		errs = append(errs, err)
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application stopped")
	return errors.Join(errs...)
}
