package handlers

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// LookupHandler serves the read-only endpoints from spec.md §6: single
// event lookup, bulk export, and log digest.
type LookupHandler struct {
	store             eventstore.Store
	maxEventsPageSize int
}

func NewLookupHandler(store eventstore.Store, maxEventsPageSize int) *LookupHandler {
	return &LookupHandler{store: store, maxEventsPageSize: maxEventsPageSize}
}

// GetBySeq handles GET /events/{seq}.
func (h *LookupHandler) GetBySeq(w http.ResponseWriter, r *http.Request) {
	seq, valid := parseSeqParam(r, "seq")
	if !valid {
		fail(w, http.StatusBadRequest, "MALFORMED", "seq must be a non-negative integer")
		return
	}

	ev, err := h.store.GetBySeq(r.Context(), seq)
	if h.writeStoreError(w, err) {
		return
	}
	ok(w, ev)
}

// GetByIsccID handles GET /iscc-id/{iscc_id}, returning the event plus the
// gateway redirect hint per spec.md §6.
func (h *LookupHandler) GetByIsccID(w http.ResponseWriter, r *http.Request) {
	isccID := chi.URLParam(r, "iscc_id")
	ev, err := h.store.GetByIsccID(r.Context(), isccID)
	if h.writeStoreError(w, err) {
		return
	}
	ok(w, ev)
}

// ListEvents handles GET /events?from={seq}&limit={n}, a contiguous slice
// for bulk log export.
func (h *LookupHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from, err := parseUintQuery(r, "from", 0)
	if err != nil {
		fail(w, http.StatusBadRequest, "MALFORMED", "from must be a non-negative integer")
		return
	}

	limit, err := parseUintQuery(r, "limit", uint64(h.maxEventsPageSize))
	if err != nil {
		fail(w, http.StatusBadRequest, "MALFORMED", "limit must be a non-negative integer")
		return
	}
	if limit == 0 || limit > uint64(h.maxEventsPageSize) {
		limit = uint64(h.maxEventsPageSize)
	}

	events, err := h.store.Scan(r.Context(), from, int(limit))
	if h.writeStoreError(w, err) {
		return
	}
	ok(w, events)
}

// LogDigest handles GET /log/digest?from={seq}&to={seq}.
func (h *LookupHandler) LogDigest(w http.ResponseWriter, r *http.Request) {
	from, err := parseUintQuery(r, "from", 1)
	if err != nil {
		fail(w, http.StatusBadRequest, "MALFORMED", "from must be a non-negative integer")
		return
	}
	to, err := parseUintQuery(r, "to", 0)
	if err != nil || to == 0 {
		fail(w, http.StatusBadRequest, "MALFORMED", "to is required and must be a non-negative integer")
		return
	}

	digest, err := h.store.Digest(r.Context(), from, to)
	if h.writeStoreError(w, err) {
		return
	}
	ok(w, map[string]string{"digest": hex.EncodeToString(digest[:])})
}

func parseUintQuery(r *http.Request, key string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// writeStoreError translates an *eventstore.StoreError into the HTTP
// response if err is non-nil, and reports whether it did so.
func (h *LookupHandler) writeStoreError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	var storeErr *eventstore.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case eventstore.ErrNotFound:
			fail(w, http.StatusNotFound, "NOT_FOUND", storeErr.Message)
		case eventstore.ErrInvalidArgument:
			fail(w, http.StatusBadRequest, "MALFORMED", storeErr.Message)
		default:
			fail(w, http.StatusInternalServerError, "TRANSIENT", storeErr.Message)
		}
		return true
	}

	fail(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	return true
}
