// Package prometheus provides the Prometheus-backed implementations of
// pkg/metrics's collector interfaces, registered against each interface's
// constructor indirection on import. Grounded on the teacher's
// pkg/metrics/prometheus (badger.go/cache.go/s3.go): one promauto-backed
// struct per concern, nil-returning constructor when metrics are disabled.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iscc/iscc-hub/pkg/metrics"
)

type declarationMetrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration prometheus.Histogram
}

func init() {
	metrics.RegisterDeclarationMetricsConstructor(newDeclarationMetrics)
}

func newDeclarationMetrics() metrics.DeclarationMetrics {
	reg := metrics.GetRegistry()

	return &declarationMetrics{
		accepted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "iscchub_declarations_accepted_total",
				Help: "Total number of declarations committed, by replay status",
			},
			[]string{"replayed"},
		),
		rejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "iscchub_declarations_rejected_total",
				Help: "Total number of declarations rejected at validation, by reason",
			},
			[]string{"reason"},
		),
		failed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "iscchub_declarations_failed_total",
				Help: "Total number of declarations that failed after validation, by kind",
			},
			[]string{"kind"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "iscchub_declaration_duration_seconds",
				Help:    "End-to-end latency of accepted declarations",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *declarationMetrics) RecordAccepted(replayed bool, duration time.Duration) {
	m.accepted.WithLabelValues(strconv.FormatBool(replayed)).Inc()
	m.duration.Observe(duration.Seconds())
}

func (m *declarationMetrics) RecordRejected(kind string) {
	m.rejected.WithLabelValues(kind).Inc()
}

func (m *declarationMetrics) RecordFailed(kind string) {
	m.failed.WithLabelValues(kind).Inc()
}
