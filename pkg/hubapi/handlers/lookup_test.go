package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/eventstore/memory"
)

func seedEvent(t *testing.T, store eventstore.Store, seq uint64, nonce string) *eventstore.Event {
	t.Helper()
	ev := &eventstore.Event{
		Seq:        seq,
		IsccID:     fmt.Sprintf("ISCC:EVENT%d", seq),
		TsMicros:   uint64(1_700_000_000_000_000 + seq),
		ServerID:   1,
		NoteRaw:    []byte(`{}`),
		Pubkey:     "deadbeef",
		Nonce:      nonce,
		Datahash:   "1e20aa",
		IsccCode:   "ISCC:AAA",
		ReceivedAt: time.Now(),
	}
	require.NoError(t, store.Append(t.Context(), ev))
	return ev
}

func TestGetBySeq_Found(t *testing.T) {
	store := memory.New()
	seedEvent(t, store, 1, "nonce-a")
	h := NewLookupHandler(store, 100)

	r := chi.NewRouter()
	r.Get("/events/{seq}", h.GetBySeq)

	req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetBySeq_NotFound(t *testing.T) {
	store := memory.New()
	h := NewLookupHandler(store, 100)

	r := chi.NewRouter()
	r.Get("/events/{seq}", h.GetBySeq)

	req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEvents_ClampsToMaxPageSize(t *testing.T) {
	store := memory.New()
	for i := uint64(1); i <= 5; i++ {
		seedEvent(t, store, i, fmt.Sprintf("nonce-%d", i))
	}
	h := NewLookupHandler(store, 2)

	req := httptest.NewRequest(http.MethodGet, "/events?from=0&limit=1000", nil)
	w := httptest.NewRecorder()
	h.ListEvents(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	events, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, events, 2)
}

func TestLogDigest_RequiresTo(t *testing.T) {
	store := memory.New()
	h := NewLookupHandler(store, 100)

	req := httptest.NewRequest(http.MethodGet, "/log/digest?from=1", nil)
	w := httptest.NewRecorder()
	h.LogDigest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogDigest_Deterministic(t *testing.T) {
	store := memory.New()
	seedEvent(t, store, 1, "nonce-a")
	seedEvent(t, store, 2, "nonce-b")
	h := NewLookupHandler(store, 100)

	req1 := httptest.NewRequest(http.MethodGet, "/log/digest?from=1&to=2", nil)
	w1 := httptest.NewRecorder()
	h.LogDigest(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/log/digest?from=1&to=2", nil)
	w2 := httptest.NewRecorder()
	h.LogDigest(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}
