package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jittakal/kafobjectsink/internal/kafka"
	"github.com/jittakal/kafobjectsink/internal/sink"
	"github.com/jittakal/kafobjectsink/internal/storage"
)

var (
	_ sink.MetricsCollector    = (*Metrics)(nil)
	_ kafka.MetricsCollector   = (*Metrics)(nil)
	_ storage.MetricsCollector = (*Metrics)(nil)
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	if metrics := NewMetrics(registry); metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("registering metrics twice on one registry should panic")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_Counters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncMessagesConsumed("orders", 3)
	metrics.IncMessagesConsumed("orders", 3)
	metrics.IncRecordsAppended("orders", 3)
	metrics.IncOrderingViolations("orders", 3)
	metrics.IncBatchesClosed("orders", 3, "max-records-reached")
	metrics.IncBatchesClosed("orders", 3, "partition-revoked")
	metrics.IncBatchesClosed("orders", 3, "partition-revoked")
	metrics.IncObjectsWritten("orders", 3, "raw", "success")
	metrics.IncOffsetCommits("orders", 3, "success")
	metrics.IncRebalances("sink")
	metrics.IncStorageErrors("gcs", "put")

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"messages consumed", metrics.MessagesConsumed.WithLabelValues("orders", "3"), 2},
		{"records appended", metrics.RecordsAppended.WithLabelValues("orders", "3"), 1},
		{"ordering violations", metrics.OrderingViolations.WithLabelValues("orders", "3"), 1},
		{"closed by size", metrics.BatchesClosed.WithLabelValues("orders", "3", "max-records-reached"), 1},
		{"closed by revoke", metrics.BatchesClosed.WithLabelValues("orders", "3", "partition-revoked"), 2},
		{"objects written", metrics.ObjectsWritten.WithLabelValues("orders", "3", "raw", "success"), 1},
		{"offset commits", metrics.OffsetCommits.WithLabelValues("orders", "3", "success"), 1},
		{"rebalances", metrics.Rebalances.WithLabelValues("sink"), 1},
		{"storage errors", metrics.StorageErrors.WithLabelValues("gcs", "put"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_Gauges(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.SetBufferStats("orders", 1, 42, 4096)
	if got := testutil.ToFloat64(metrics.BufferRecordCount.WithLabelValues("orders", "1")); got != 42 {
		t.Errorf("buffer records = %v, want 42", got)
	}
	if got := testutil.ToFloat64(metrics.BufferSize.WithLabelValues("orders", "1")); got != 4096 {
		t.Errorf("buffer bytes = %v, want 4096", got)
	}

	metrics.SetBufferStats("orders", 1, 0, 0)
	if got := testutil.ToFloat64(metrics.BufferRecordCount.WithLabelValues("orders", "1")); got != 0 {
		t.Errorf("buffer records after close = %v, want 0", got)
	}

	metrics.SetPartitionsAssigned("orders", 6)
	if got := testutil.ToFloat64(metrics.PartitionsAssigned.WithLabelValues("orders")); got != 6 {
		t.Errorf("partitions assigned = %v, want 6", got)
	}
}

func TestMetrics_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveObjectSize("orders", 0, "parquet", 2048)
	metrics.ObserveWriteDuration("orders", 0, 0.5)
	metrics.ObserveUploadDuration("s3", 0.2)
	metrics.ObserveCommitLatency("orders", 0, 0.01)
	metrics.ObserveRebalanceDuration("sink", 1.5)

	for _, name := range []string{
		"sink_object_size_bytes",
		"sink_object_write_duration_seconds",
		"storage_upload_duration_seconds",
		"kafka_commit_latency_seconds",
		"kafka_rebalance_duration_seconds",
	} {
		got, err := testutil.GatherAndCount(registry, name)
		if err != nil {
			t.Fatalf("GatherAndCount(%q) error = %v", name, err)
		}
		if got != 1 {
			t.Errorf("GatherAndCount(%q) = %d, want 1", name, got)
		}
	}
}
