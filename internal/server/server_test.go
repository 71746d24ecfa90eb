package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestHealthMux_Paths(t *testing.T) {
	checker := &mockHealthChecker{liveness: true, readiness: false}

	tests := []struct {
		name     string
		config   Config
		path     string
		wantCode int
	}{
		{"default liveness", Config{}, "/health/live", http.StatusOK},
		{"default readiness", Config{}, "/health/ready", http.StatusServiceUnavailable},
		{"custom liveness", Config{LivenessPath: "/livez"}, "/livez", http.StatusOK},
		{"unknown path", Config{}, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(HealthMux(tt.config, checker, testLogger()))
			defer srv.Close()

			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}
		})
	}
}

func TestMetricsMux(t *testing.T) {
	registry := prometheus.NewRegistry()
	promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "sink_objects_written_total",
		Help: "Total number of objects written to storage",
	}).Add(3)

	srv := httptest.NewServer(MetricsMux(Config{}, registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "sink_objects_written_total 3") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	tests := []struct {
		name           string
		metricsEnabled bool
		wantServers    int
	}{
		{"health only", false, 1},
		{"health and metrics", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{HealthPort: 0, MetricsPort: 0, MetricsEnabled: tt.metricsEnabled},
				&mockHealthChecker{liveness: true}, prometheus.NewRegistry(), testLogger())

			if got := len(s.servers()); got != tt.wantServers {
				t.Fatalf("servers = %d, want %d", got, tt.wantServers)
			}
			if err := s.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}
