// Package handlers implements the HTTP handlers behind pkg/hubapi's router:
// the declaration submit endpoint, the lookup/export/digest GETs, and
// health checks, grounded on the teacher's pkg/api/handlers package.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iscc/iscc-hub/pkg/ingress"
	"github.com/iscc/iscc-hub/pkg/note"
)

// Response mirrors pkg/hubapi.Response so handlers can write it without an
// import cycle back into the parent package.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":{"kind":"INTERNAL","message":"failed to encode response"}}`, http.StatusInternalServerError)
	}
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Status: "ok", Data: data})
}

func created(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, Response{Status: "ok", Data: data})
}

func fail(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, Response{
		Status: "error",
		Error:  &ErrorBody{Kind: kind, Message: message},
	})
}

// writeRejection maps a *note.RejectionError onto spec.md §7's status table.
func writeRejection(w http.ResponseWriter, rej *note.RejectionError) {
	status := http.StatusBadRequest
	switch rej.Kind {
	case note.RejectMalformed:
		status = http.StatusBadRequest
	case note.RejectWrongHub:
		status = http.StatusUnprocessableEntity
	case note.RejectStale, note.RejectFuture:
		status = http.StatusGone
	case note.RejectBadSignature:
		status = http.StatusUnauthorized
	}
	fail(w, status, string(rej.Kind), rej.Reason)
}

// writeIngressError maps an *ingress.Error onto spec.md §7's status table.
func writeIngressError(w http.ResponseWriter, err *ingress.Error) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case ingress.KindBusy:
		status = http.StatusTooManyRequests
	case ingress.KindClockExhausted:
		status = http.StatusServiceUnavailable
	case ingress.KindTransient:
		status = http.StatusInternalServerError
	case ingress.KindCancelled:
		status = 499 // client closed request, nginx convention; no state was recorded
	case ingress.KindInternal:
		status = http.StatusInternalServerError
	case ingress.KindConflict:
		status = http.StatusConflict
	}
	fail(w, status, string(err.Kind), err.Error())
}

// parseSeqParam extracts and validates the {seq} URL parameter.
func parseSeqParam(r *http.Request, name string) (uint64, bool) {
	raw := chi.URLParam(r, name)
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
