package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockHealthChecker struct {
	liveness  bool
	readiness bool
	healthy   bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool                     { return m.liveness }
func (m *mockHealthChecker) Readiness(ctx context.Context) bool { return m.readiness }
func (m *mockHealthChecker) IsHealthy() bool                    { return m.healthy }
func (m *mockHealthChecker) GetStatus() map[string]string       { return m.status }

type fakeTask struct {
	stopped bool
	tps     []record.TopicPartition
	pending map[record.TopicPartition]bool
}

func (f *fakeTask) Stopped() bool                         { return f.stopped }
func (f *fakeTask) Partitions() []record.TopicPartition   { return f.tps }
func (f *fakeTask) Pending(tp record.TopicPartition) bool { return f.pending[tp] }

type fakeConsumer struct {
	ready  chan struct{}
	closed bool
}

func newFakeConsumer(ready bool) *fakeConsumer {
	c := &fakeConsumer{ready: make(chan struct{})}
	if ready {
		close(c.ready)
	}
	return c
}

func (f *fakeConsumer) Ready() <-chan struct{} { return f.ready }
func (f *fakeConsumer) IsClosed() bool         { return f.closed }

func TestSinkHealth(t *testing.T) {
	tp0 := record.TopicPartition{Topic: "orders", Partition: 0}
	tp1 := record.TopicPartition{Topic: "orders", Partition: 1}

	tests := []struct {
		name        string
		task        *fakeTask
		consumer    *fakeConsumer
		wantLive    bool
		wantReady   bool
		wantHealthy bool
		wantStatus  map[string]string
	}{
		{
			name:        "starting",
			task:        &fakeTask{},
			consumer:    newFakeConsumer(false),
			wantLive:    true,
			wantReady:   false,
			wantHealthy: true,
			wantStatus:  map[string]string{"consumer": "starting", "task": "running", "partitions": "0", "failed_partitions": "0"},
		},
		{
			name:        "running",
			task:        &fakeTask{tps: []record.TopicPartition{tp0, tp1}},
			consumer:    newFakeConsumer(true),
			wantLive:    true,
			wantReady:   true,
			wantHealthy: true,
			wantStatus:  map[string]string{"consumer": "ready", "task": "running", "partitions": "2", "failed_partitions": "0"},
		},
		{
			name:        "failed partition",
			task:        &fakeTask{tps: []record.TopicPartition{tp0, tp1}, pending: map[record.TopicPartition]bool{tp1: true}},
			consumer:    newFakeConsumer(true),
			wantLive:    true,
			wantReady:   true,
			wantHealthy: false,
			wantStatus:  map[string]string{"consumer": "ready", "task": "running", "partitions": "2", "failed_partitions": "1"},
		},
		{
			name:        "stopped",
			task:        &fakeTask{stopped: true},
			consumer:    &fakeConsumer{ready: closedChan(), closed: true},
			wantLive:    false,
			wantReady:   false,
			wantHealthy: false,
			wantStatus:  map[string]string{"consumer": "closed", "task": "stopped", "partitions": "0", "failed_partitions": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSinkHealth(tt.task, tt.consumer)

			if got := h.Liveness(); got != tt.wantLive {
				t.Errorf("Liveness() = %v, want %v", got, tt.wantLive)
			}
			if got := h.Readiness(context.Background()); got != tt.wantReady {
				t.Errorf("Readiness() = %v, want %v", got, tt.wantReady)
			}
			if got := h.IsHealthy(); got != tt.wantHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.wantHealthy)
			}
			status := h.GetStatus()
			for k, v := range tt.wantStatus {
				if status[k] != v {
					t.Errorf("GetStatus()[%q] = %q, want %q", k, status[k], v)
				}
			}
		})
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		alive      bool
		wantCode   int
		wantStatus string
	}{
		{"alive", true, http.StatusOK, "alive"},
		{"not alive", false, http.StatusServiceUnavailable, "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&mockHealthChecker{liveness: tt.alive}, testLogger())
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Timestamp == "" {
				t.Errorf("response = %+v", resp)
			}
			if resp.Checks != nil {
				t.Error("liveness response should not carry checks")
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		wantCode   int
		wantStatus string
	}{
		{"ready", true, http.StatusOK, "ready"},
		{"not ready", false, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockHealthChecker{readiness: tt.ready, status: map[string]string{"consumer": "ready"}}
			handler := ReadinessHandler(checker, testLogger())
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Checks["consumer"] != "ready" {
				t.Errorf("Checks = %v", resp.Checks)
			}
		})
	}
}
