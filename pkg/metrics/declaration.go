package metrics

import "time"

// DeclarationMetrics observes the ingress façade's accept/reject/latency
// behavior. Pass nil to disable with zero overhead; every helper below is
// nil-safe.
type DeclarationMetrics interface {
	// RecordAccepted records a successfully sequenced declaration,
	// replayed distinguishing an idempotent resubmission from a fresh
	// commit.
	RecordAccepted(replayed bool, duration time.Duration)

	// RecordRejected records a validation-stage rejection by its
	// note.RejectKind string.
	RecordRejected(kind string)

	// RecordFailed records an ingress.Kind failure (busy, clock
	// exhausted, transient, cancelled, internal) after validation
	// passed.
	RecordFailed(kind string)
}

// NewDeclarationMetrics returns a Prometheus-backed DeclarationMetrics, or
// nil if InitRegistry has not been called.
func NewDeclarationMetrics() DeclarationMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusDeclarationMetrics()
}

// newPrometheusDeclarationMetrics is registered by
// pkg/metrics/prometheus/declaration.go's init(). The indirection avoids an
// import cycle between this package and its Prometheus implementation.
var newPrometheusDeclarationMetrics func() DeclarationMetrics

// RegisterDeclarationMetricsConstructor is called by
// pkg/metrics/prometheus/declaration.go during package initialization.
func RegisterDeclarationMetricsConstructor(constructor func() DeclarationMetrics) {
	newPrometheusDeclarationMetrics = constructor
}

// RecordAccepted is a nil-safe wrapper around DeclarationMetrics.RecordAccepted.
func RecordAccepted(m DeclarationMetrics, replayed bool, duration time.Duration) {
	if m != nil {
		m.RecordAccepted(replayed, duration)
	}
}

// RecordRejected is a nil-safe wrapper around DeclarationMetrics.RecordRejected.
func RecordRejected(m DeclarationMetrics, kind string) {
	if m != nil {
		m.RecordRejected(kind)
	}
}

// RecordFailed is a nil-safe wrapper around DeclarationMetrics.RecordFailed.
func RecordFailed(m DeclarationMetrics, kind string) {
	if m != nil {
		m.RecordFailed(kind)
	}
}
