package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// HealthCheckTimeout bounds the store health probe so a wedged backend
// cannot block a readiness check indefinitely.
const HealthCheckTimeout = 5 * time.Second

// healthchecker is implemented by event store backends with real liveness
// semantics (badger, postgres). The in-memory backend doesn't implement
// it and is always reported healthy.
type healthchecker interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler serves the unauthenticated health probes from spec.md §6.
type HealthHandler struct {
	store eventstore.Store
}

func NewHealthHandler(store eventstore.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /health: is the process running at all.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"service": "iscc-hub"})
}

// Readiness handles GET /health/ready: is the event store reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		fail(w, http.StatusServiceUnavailable, "INTERNAL", "event store not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if hc, isHealthchecker := h.store.(healthchecker); isHealthchecker {
		if err := hc.Healthcheck(ctx); err != nil {
			fail(w, http.StatusServiceUnavailable, "TRANSIENT", err.Error())
			return
		}
	}

	ok(w, map[string]string{"store": "reachable"})
}

// storeHealth is a single backend's health status, mirroring the teacher's
// StoreHealth shape.
type storeHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Stores handles GET /health/stores: detailed event store health.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		fail(w, http.StatusServiceUnavailable, "INTERNAL", "event store not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	status := storeHealth{Name: "event-store"}

	hc, isHealthchecker := h.store.(healthchecker)
	if !isHealthchecker {
		status.Status = "healthy"
		ok(w, status)
		return
	}

	start := time.Now()
	err := hc.Healthcheck(ctx)
	status.Latency = time.Since(start).String()

	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, Response{Status: "unhealthy", Data: status})
		return
	}

	status.Status = "healthy"
	ok(w, status)
}
