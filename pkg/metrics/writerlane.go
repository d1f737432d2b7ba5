package metrics

import "time"

// WriterLaneMetrics observes the sequencer's single writer lane: its queue
// depth (the backpressure signal behind a 429 BUSY response) and its
// per-commit latency. Pass nil to disable with zero overhead.
type WriterLaneMetrics interface {
	// SetQueueDepth records the writer lane's current backlog length.
	SetQueueDepth(depth int)

	// RecordCommit records the time spent inside the writer lane's
	// critical section for one admitted note.
	RecordCommit(duration time.Duration)

	// RecordClockExhausted records that the writer lane hit the 52-bit
	// microsecond timestamp ceiling and stopped admitting notes.
	RecordClockExhausted()
}

// NewWriterLaneMetrics returns a Prometheus-backed WriterLaneMetrics, or
// nil if InitRegistry has not been called.
func NewWriterLaneMetrics() WriterLaneMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusWriterLaneMetrics()
}

var newPrometheusWriterLaneMetrics func() WriterLaneMetrics

// RegisterWriterLaneMetricsConstructor is called by
// pkg/metrics/prometheus/writerlane.go during package initialization.
func RegisterWriterLaneMetricsConstructor(constructor func() WriterLaneMetrics) {
	newPrometheusWriterLaneMetrics = constructor
}

// SetQueueDepth is a nil-safe wrapper around WriterLaneMetrics.SetQueueDepth.
func SetQueueDepth(m WriterLaneMetrics, depth int) {
	if m != nil {
		m.SetQueueDepth(depth)
	}
}

// RecordCommit is a nil-safe wrapper around WriterLaneMetrics.RecordCommit.
func RecordCommit(m WriterLaneMetrics, duration time.Duration) {
	if m != nil {
		m.RecordCommit(duration)
	}
}

// RecordClockExhausted is a nil-safe wrapper around
// WriterLaneMetrics.RecordClockExhausted.
func RecordClockExhausted(m WriterLaneMetrics) {
	if m != nil {
		m.RecordClockExhausted()
	}
}
