package sink

// MetricsCollector defines metrics operations for the sink.
type MetricsCollector interface {
	IncRecordsAppended(topic string, partition int32)
	IncOrderingViolations(topic string, partition int32)
	IncBatchesClosed(topic string, partition int32, trigger string)
	IncObjectsWritten(topic string, partition int32, format string, status string)
	ObserveObjectSize(topic string, partition int32, format string, size float64)
	ObserveWriteDuration(topic string, partition int32, duration float64)
	SetBufferStats(topic string, partition int32, records int, bytes int64)
}
