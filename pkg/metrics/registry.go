// Package metrics defines the HUB's metrics collection interfaces and the
// nil-safe helpers that let every subsystem accept an optional collector.
// Grounded on the teacher's pkg/metrics (cache.go/nfs.go/s3.go): interfaces
// live here, Prometheus implementations live in pkg/metrics/prometheus, and
// a registered-constructor indirection (see declaration.go) lets this
// package return a working collector without importing
// prometheus/client_golang directly.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry. Subsequent
// calls to IsEnabled return true and NewXMetrics constructors start
// returning real collectors instead of nil. Call once, before constructing
// any collectors.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format, or nil if metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
