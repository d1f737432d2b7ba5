package hubapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iscc/iscc-hub/internal/logger"
	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/hubapi/handlers"
	"github.com/iscc/iscc-hub/pkg/ingress"
)

// NewRouter builds the chi router for the declaration/lookup/health HTTP
// surface, following the teacher's pkg/api/router.go middleware stack and
// route grouping.
//
// Routes:
//   - POST /declaration - submit an IsccNote
//   - GET /events/{seq} - single event lookup
//   - GET /iscc-id/{iscc_id} - event lookup by minted id
//   - GET /events - contiguous slice for bulk export
//   - GET /log/digest - rolling digest over a seq range
//   - GET /health, /health/ready, /health/stores - liveness/readiness probes
func NewRouter(ig *ingress.Ingress, store eventstore.Store, maxEventsPageSize int) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	declareHandler := handlers.NewDeclareHandler(ig)
	r.Post("/declaration", declareHandler.Declare)

	lookupHandler := handlers.NewLookupHandler(store, maxEventsPageSize)
	r.Get("/events", lookupHandler.ListEvents)
	r.Get("/events/{seq}", lookupHandler.GetBySeq)
	r.Get("/iscc-id/{iscc_id}", lookupHandler.GetByIsccID)
	r.Get("/log/digest", lookupHandler.LogDigest)

	return r
}

// requestLogger logs request start/completion using internal/logger,
// mirroring the teacher's custom requestLogger middleware.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("http request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("http request completed",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
