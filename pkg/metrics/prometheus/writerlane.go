package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iscc/iscc-hub/pkg/metrics"
)

type writerLaneMetrics struct {
	queueDepth       prometheus.Gauge
	commitDuration   prometheus.Histogram
	clockExhausted   prometheus.Counter
}

func init() {
	metrics.RegisterWriterLaneMetricsConstructor(newWriterLaneMetrics)
}

func newWriterLaneMetrics() metrics.WriterLaneMetrics {
	reg := metrics.GetRegistry()

	return &writerLaneMetrics{
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "iscchub_writer_lane_queue_depth",
				Help: "Current backlog of the single writer lane's submit channel",
			},
		),
		commitDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "iscchub_writer_lane_commit_duration_seconds",
				Help: "Time spent inside the writer lane's critical section per admitted note",
				Buckets: []float64{
					0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
				},
			},
		),
		clockExhausted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "iscchub_writer_lane_clock_exhausted_total",
				Help: "Total number of times the writer lane hit the 52-bit timestamp ceiling",
			},
		),
	}
}

func (m *writerLaneMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *writerLaneMetrics) RecordCommit(duration time.Duration) {
	m.commitDuration.Observe(duration.Seconds())
}

func (m *writerLaneMetrics) RecordClockExhausted() {
	m.clockExhausted.Inc()
}
