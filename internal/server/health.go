package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// TaskState is the view of the sink task the health checks need.
type TaskState interface {
	Stopped() bool
	Partitions() []record.TopicPartition
	Pending(tp record.TopicPartition) bool
}

// ConsumerState is the view of the record source the health checks need.
type ConsumerState interface {
	Ready() <-chan struct{}
	IsClosed() bool
}

// SinkHealth reports health from the task and the consumer.
type SinkHealth struct {
	task     TaskState
	consumer ConsumerState
}

// NewSinkHealth creates a health checker.
func NewSinkHealth(task TaskState, consumer ConsumerState) *SinkHealth {
	return &SinkHealth{task: task, consumer: consumer}
}

// Liveness fails only once the consumer is closed.
func (h *SinkHealth) Liveness() bool {
	return !h.consumer.IsClosed()
}

// Readiness holds once the consumer joined its group and the task runs.
func (h *SinkHealth) Readiness(ctx context.Context) bool {
	return h.consumerReady() && !h.task.Stopped() && !h.consumer.IsClosed()
}

// IsHealthy additionally requires that no partition holds a failed batch.
func (h *SinkHealth) IsHealthy() bool {
	return h.Liveness() && h.failedPartitions() == 0
}

// GetStatus returns per-component status strings.
func (h *SinkHealth) GetStatus() map[string]string {
	consumer := "starting"
	switch {
	case h.consumer.IsClosed():
		consumer = "closed"
	case h.consumerReady():
		consumer = "ready"
	}

	task := "running"
	if h.task.Stopped() {
		task = "stopped"
	}

	return map[string]string{
		"consumer":          consumer,
		"task":              task,
		"partitions":        strconv.Itoa(len(h.task.Partitions())),
		"failed_partitions": strconv.Itoa(h.failedPartitions()),
	}
}

func (h *SinkHealth) consumerReady() bool {
	select {
	case <-h.consumer.Ready():
		return true
	default:
		return false
	}
}

func (h *SinkHealth) failedPartitions() int {
	failed := 0
	for _, tp := range h.task.Partitions() {
		if h.task.Pending(tp) {
			failed++
		}
	}
	return failed
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, logger, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, logger, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		})
	}
}

func writeHealth(w http.ResponseWriter, logger *slog.Logger, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
