package ingress_test

import (
	"crypto/ed25519"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
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

const serverID = 1

// sampleIsccCode builds a well-formed single-unit ISCC-CODE string: header
// MainType=ISCC (0101), followed by one 8-byte unit body.
func sampleIsccCode() string {
	buf := make([]byte, 10)
	header := uint16(0b0101_0000_0000_0000)
	binary.BigEndian.PutUint16(buf[0:2], header)
	binary.BigEndian.PutUint64(buf[2:10], 0x0102030405060708)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "ISCC:" + enc.EncodeToString(buf)
}

func buildSignedNote(t *testing.T, nonceSuffix string, ts time.Time) []byte {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonce := fmt.Sprintf("%03x%s", serverID, nonceSuffix)
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

func newTestIngress(t *testing.T, now func() time.Time) *ingress.Ingress {
	t.Helper()
	store := memory.New()
	seq := sequencer.New(store, sequencer.Config{ServerID: serverID, Now: now})
	seq.Start()
	t.Cleanup(func() { seq.Stop(time.Second) })

	id, err := hubidentity.Generate("hub.example.com")
	require.NoError(t, err)

	return ingress.New(ingress.Config{
		Store:     store,
		Sequencer: seq,
		Identity:  id,
		Validation: note.ValidationConfig{
			ServerID: serverID,
			Now:      now,
		},
	})
}

func TestDeclare_HappyPath(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	ig := newTestIngress(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "deadbeef", fixedNow)
	res, err := ig.Declare(t.Context(), raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Event.Seq)
	assert.False(t, res.Replayed)
	assert.NotNil(t, res.Receipt.Proof)
}

func TestDeclare_IdempotentResubmission(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	ig := newTestIngress(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "cafebabe", fixedNow)
	first, err := ig.Declare(t.Context(), raw)
	require.NoError(t, err)

	second, err := ig.Declare(t.Context(), raw)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Event.Seq, second.Event.Seq)
	assert.Equal(t, first.Receipt.Proof.ProofValue, second.Receipt.Proof.ProofValue)
}

func TestDeclare_ConflictingNonceRejected(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	ig := newTestIngress(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "conflict0", fixedNow)
	_, err := ig.Declare(t.Context(), raw)
	require.NoError(t, err)

	// Same nonce suffix, but a fresh call mints a new keypair and signature,
	// so the raw bytes differ from the first submission.
	conflicting := buildSignedNote(t, "conflict0", fixedNow)
	_, err = ig.Declare(t.Context(), conflicting)
	require.Error(t, err)

	ingressErr, ok := err.(*ingress.Error)
	require.True(t, ok, "expected *ingress.Error, got %T", err)
	assert.Equal(t, ingress.KindConflict, ingressErr.Kind)
}

func TestDeclare_WrongHubRejected(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 34, 56, 789_000_000, time.UTC)
	ig := newTestIngress(t, func() time.Time { return fixedNow })

	raw := buildSignedNote(t, "deadbeef", fixedNow)
	// Corrupt the nonce prefix to target a different server_id.
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	body["nonce"] = "002" + body["nonce"].(string)[3:]
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	_, err = ig.Declare(t.Context(), raw)
	require.Error(t, err)

	rejectErr, ok := err.(*note.RejectionError)
	require.True(t, ok, "expected *note.RejectionError, got %T", err)
	assert.Equal(t, note.RejectWrongHub, rejectErr.Kind)
}
