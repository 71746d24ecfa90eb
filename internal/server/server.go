// Package server implements the health and metrics HTTP servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Config configures the HTTP servers.
type Config struct {
	HealthPort     int
	LivenessPath   string
	ReadinessPath  string
	MetricsEnabled bool
	MetricsPort    int
	MetricsPath    string
}

func (c *Config) applyDefaults() {
	if c.LivenessPath == "" {
		c.LivenessPath = "/health/live"
	}
	if c.ReadinessPath == "" {
		c.ReadinessPath = "/health/ready"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates the health server and, when enabled, the metrics server.
func NewServer(
	config Config,
	healthChecker HealthChecker,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Server {
	config.applyDefaults()

	s := &Server{
		healthServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.HealthPort),
			Handler:      HealthMux(config, healthChecker, logger),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if config.MetricsEnabled {
		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", config.MetricsPort),
			Handler:      MetricsMux(config, gatherer),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}
	return s
}

// HealthMux routes the liveness and readiness probes.
func HealthMux(config Config, checker HealthChecker, logger *slog.Logger) *http.ServeMux {
	config.applyDefaults()
	mux := http.NewServeMux()
	mux.HandleFunc(config.LivenessPath, LivenessHandler(checker, logger))
	mux.HandleFunc(config.ReadinessPath, ReadinessHandler(checker, logger))
	return mux
}

// MetricsMux serves the Prometheus exposition.
func MetricsMux(config Config, gatherer prometheus.Gatherer) *http.ServeMux {
	config.applyDefaults()
	mux := http.NewServeMux()
	mux.Handle(config.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start starts the HTTP servers in the background.
func (s *Server) Start() error {
	for _, srv := range s.servers() {
		go func(srv *http.Server) {
			s.logger.Info("starting http server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("http server failed", "addr", srv.Addr, "error", err)
			}
		}(srv)
	}
	return nil
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := s.servers()
	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	var errs []error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) servers() []*http.Server {
	servers := []*http.Server{s.healthServer}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}
	return servers
}
