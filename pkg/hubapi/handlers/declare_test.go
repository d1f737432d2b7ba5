package handlers

import (
	"crypto/ed25519"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscc/iscc-hub/pkg/eventstore/memory"
	"github.com/iscc/iscc-hub/pkg/hubidentity"
	"github.com/iscc/iscc-hub/pkg/ingress"
	"github.com/iscc/iscc-hub/pkg/note"
	"github.com/iscc/iscc-hub/pkg/sequencer"
)

const testServerID = 1

func sampleIsccCode() string {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], 0b0101_0000_0000_0000)
	binary.BigEndian.PutUint64(buf[2:10], 0x0102030405060708)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "ISCC:" + enc.EncodeToString(buf)
}

func buildSignedNote(t *testing.T, nonceSuffix string, ts time.Time) []byte {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonce := fmt.Sprintf("%03x%s", testServerID, nonceSuffix)
	for len(nonce) < 32 {
		nonce += "0"
	}

	body := map[string]any{
		"iscc_code": sampleIsccCode(),
		"datahash":  "1e20" + hex.EncodeToString(make([]byte, 32)),
		"nonce":     nonce,
		"timestamp": ts.UTC().Format("2006-01-02T15:04:05.000Z"),
		"signature": map[string]any{
			"version": 1,
			"pubkey":  hex.EncodeToString(pub),
		},
	}

	withoutSig, err := json.Marshal(body)
	require.NoError(t, err)

	canon, err := note.CanonicalizeJSONObject(withoutSig, map[string]bool{})
	require.NoError(t, err)
	sig := ed25519.Sign(priv, canon)

	body["signature"].(map[string]any)["proof"] = hex.EncodeToString(sig)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func newTestDeclareHandler(t *testing.T, now func() time.Time) *DeclareHandler {
	t.Helper()
	store := memory.New()
	seq := sequencer.New(store, sequencer.Config{ServerID: testServerID, Now: now})
	seq.Start()
	t.Cleanup(func() { seq.Stop(time.Second) })

	id, err := hubidentity.Generate("hub.example.com")
	require.NoError(t, err)

	ig := ingress.New(ingress.Config{
		Store:     store,
		Sequencer: seq,
		Identity:  id,
		Validation: note.ValidationConfig{
			ServerID: testServerID,
			Now:      now,
		},
	})
	return NewDeclareHandler(ig)
}

func TestDeclare_FreshNote_Returns201(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	h := newTestDeclareHandler(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "deadbeef", fixedNow)
	req := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(raw)))
	w := httptest.NewRecorder()

	h.Declare(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestDeclare_Resubmission_Returns200(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	h := newTestDeclareHandler(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "cafebabe", fixedNow)

	req1 := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(raw)))
	w1 := httptest.NewRecorder()
	h.Declare(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(raw)))
	w2 := httptest.NewRecorder()
	h.Declare(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestDeclare_ConflictingNonce_Returns409(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	h := newTestDeclareHandler(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "conflict0", fixedNow)
	req1 := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(raw)))
	w1 := httptest.NewRecorder()
	h.Declare(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	// Same nonce suffix, fresh keypair and signature: different raw bytes.
	conflicting := buildSignedNote(t, "conflict0", fixedNow)
	req2 := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(conflicting)))
	w2 := httptest.NewRecorder()
	h.Declare(w2, req2)

	assert.Equal(t, http.StatusConflict, w2.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&resp))
	assert.Equal(t, "CONFLICT", resp.Error.Kind)
}

func TestDeclare_WrongHub_Returns422(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	h := newTestDeclareHandler(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "deadbeef", fixedNow)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	body["nonce"] = "002" + body["nonce"].(string)[3:]
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader(string(raw)))
	w := httptest.NewRecorder()
	h.Declare(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeclare_MalformedBody_Returns400(t *testing.T) {
	h := newTestDeclareHandler(t, time.Now)

	req := httptest.NewRequest(http.MethodPost, "/declaration", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.Declare(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
