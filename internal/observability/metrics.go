package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Batch metrics
	RecordsAppended    *prometheus.CounterVec
	OrderingViolations *prometheus.CounterVec
	BatchesClosed      *prometheus.CounterVec
	BufferSize         *prometheus.GaugeVec
	BufferRecordCount  *prometheus.GaugeVec

	// Object metrics
	ObjectsWritten        *prometheus.CounterVec
	ObjectSize            *prometheus.HistogramVec
	ObjectWriteDuration   *prometheus.HistogramVec
	StorageUploadDuration *prometheus.HistogramVec
	StorageErrors         *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group sessions",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		RecordsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_records_appended_total",
				Help: "Total number of records appended to partition batches",
			},
			[]string{"topic", "partition"},
		),
		OrderingViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_ordering_violations_total",
				Help: "Total number of records rejected for a non-increasing offset",
			},
			[]string{"topic", "partition"},
		),
		BatchesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_batches_closed_total",
				Help: "Total number of batches closed, by rollover trigger",
			},
			[]string{"topic", "partition", "trigger"},
		),
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sink_buffer_size_bytes",
				Help: "Current size of the open batch in bytes",
			},
			[]string{"topic", "partition"},
		),
		BufferRecordCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sink_buffer_record_count",
				Help: "Current number of records in the open batch",
			},
			[]string{"topic", "partition"},
		),

		ObjectsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_objects_written_total",
				Help: "Total number of objects written to storage",
			},
			[]string{"topic", "partition", "format", "status"},
		),
		ObjectSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_object_size_bytes",
				Help:    "Size of objects written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to 256MiB
			},
			[]string{"topic", "partition", "format"},
		),
		ObjectWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_object_write_duration_seconds",
				Help:    "Duration of object writes including encoding and compression",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "partition"},
		),
		StorageUploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_upload_duration_seconds",
				Help:    "Duration of object store uploads",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "operation"},
		),
	}
}

func partitionLabel(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncRecordsAppended increments the appended records counter.
func (m *Metrics) IncRecordsAppended(topic string, partition int32) {
	m.RecordsAppended.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncOrderingViolations increments the ordering violations counter.
func (m *Metrics) IncOrderingViolations(topic string, partition int32) {
	m.OrderingViolations.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncBatchesClosed increments the closed batches counter for trigger.
func (m *Metrics) IncBatchesClosed(topic string, partition int32, trigger string) {
	m.BatchesClosed.WithLabelValues(topic, partitionLabel(partition), trigger).Inc()
}

// SetBufferStats sets the open batch gauges.
func (m *Metrics) SetBufferStats(topic string, partition int32, records int, bytes int64) {
	p := partitionLabel(partition)
	m.BufferRecordCount.WithLabelValues(topic, p).Set(float64(records))
	m.BufferSize.WithLabelValues(topic, p).Set(float64(bytes))
}

// IncObjectsWritten increments objects written counter.
func (m *Metrics) IncObjectsWritten(topic string, partition int32, format string, status string) {
	m.ObjectsWritten.WithLabelValues(topic, partitionLabel(partition), format, status).Inc()
}

// ObserveObjectSize observes object size.
func (m *Metrics) ObserveObjectSize(topic string, partition int32, format string, size float64) {
	m.ObjectSize.WithLabelValues(topic, partitionLabel(partition), format).Observe(size)
}

// ObserveWriteDuration observes object write duration.
func (m *Metrics) ObserveWriteDuration(topic string, partition int32, duration float64) {
	m.ObjectWriteDuration.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// ObserveUploadDuration observes an object store upload.
func (m *Metrics) ObserveUploadDuration(backend string, seconds float64) {
	m.StorageUploadDuration.WithLabelValues(backend).Observe(seconds)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
