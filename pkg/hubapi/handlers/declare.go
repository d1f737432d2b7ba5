package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/iscc/iscc-hub/internal/logger"
	"github.com/iscc/iscc-hub/pkg/ingress"
	"github.com/iscc/iscc-hub/pkg/note"
)

// DeclareHandler handles POST /declaration, spec.md §6's submit endpoint.
type DeclareHandler struct {
	ingress *ingress.Ingress
}

func NewDeclareHandler(ig *ingress.Ingress) *DeclareHandler {
	return &DeclareHandler{ingress: ig}
}

// declareResponse is the success body for both fresh admission (201) and
// idempotent resubmission (200): spec.md §6 specifies the same shape for
// both, only the status code differs.
type declareResponse struct {
	IsccID  string      `json:"iscc_id"`
	Seq     uint64      `json:"seq"`
	Receipt interface{} `json:"receipt"`
}

// Declare handles POST /declaration with a JSON IsccNote body.
func (h *DeclareHandler) Declare(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		fail(w, http.StatusBadRequest, string(note.RejectMalformed), "failed to read request body")
		return
	}

	result, err := h.ingress.Declare(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := declareResponse{
		IsccID:  result.Event.IsccID,
		Seq:     result.Event.Seq,
		Receipt: result.Receipt,
	}

	if result.Replayed {
		ok(w, body)
		return
	}
	created(w, body)
}

func (h *DeclareHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *note.RejectionError
	if errors.As(err, &rej) {
		writeRejection(w, rej)
		return
	}

	var ingErr *ingress.Error
	if errors.As(err, &ingErr) {
		writeIngressError(w, ingErr)
		return
	}

	logger.ErrorCtx(r.Context(), "declare: unhandled error", "error", err)
	fail(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}
