package note

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
)

const testServerID uint16 = 0x123

func sampleIsccCode() string {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], 0b0101_0000_0000_0000) // MainType=ISCC
	binary.BigEndian.PutUint64(buf[2:10], 0x0102030405060708)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "ISCC:" + enc.EncodeToString(buf)
}

// sampleUnit builds a well-formed ISCC-UNIT string: MainType=Content (not
// the composite ISCC MainType checkUnits rejects).
func sampleUnit() string {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], 0b0010_0000_0000_0000) // MainType=Content
	binary.BigEndian.PutUint64(buf[2:10], 0x0102030405060708)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(buf)
}

func sampleDatahash() string {
	return "1e20" + hex.EncodeToString(make([]byte, 32))
}

// nonceWithPrefix builds a 32-hex-char nonce whose top 12 bits equal
// prefix, with the remaining 20 bits fixed.
func nonceWithPrefix(prefix uint16) string {
	var raw [16]byte
	raw[0] = byte(prefix >> 4)
	raw[1] = byte(prefix<<4) | 0x0a
	return hex.EncodeToString(raw[:])
}

// buildNoteBody returns an unsigned note body map using the given nonce and
// timestamp, ready for signing.
func buildNoteBody(nonce string, ts time.Time) map[string]any {
	return map[string]any{
		"iscc_code": sampleIsccCode(),
		"datahash":  sampleDatahash(),
		"nonce":     nonce,
		"timestamp": ts.UTC().Format("2006-01-02T15:04:05.000Z"),
		"signature": map[string]any{
			"version": 1,
			"pubkey":  "",
		},
	}
}

// signNote canonicalizes body (minus any existing proof) and attaches a
// fresh Ed25519 signature under a freshly generated keypair.
func signNote(t *testing.T, body map[string]any) []byte {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	body["signature"].(map[string]any)["pubkey"] = hex.EncodeToString(pub)

	withoutSig, err := json.Marshal(body)
	require.NoError(t, err)
	canon, err := CanonicalizeJSONObject(withoutSig, nil)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, canon)
	body["signature"].(map[string]any)["proof"] = hex.EncodeToString(sig)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func validConfig(now time.Time) ValidationConfig {
	return ValidationConfig{
		ServerID: testServerID,
		Now:      func() time.Time { return now },
	}
}

func TestValidate_HappyPath(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)
	raw := signNote(t, buildNoteBody(nonceWithPrefix(testServerID), fixedNow))

	n, err := Validate(raw, validConfig(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, sampleIsccCode(), n.IsccCode)
}

func TestCheckNoncePrefix_BoundaryBits(t *testing.T) {
	cfg := ValidationConfig{ServerID: testServerID}

	// Exact match of the top 12 bits passes.
	n := &Note{Nonce: nonceWithPrefix(testServerID)}
	require.NoError(t, checkNoncePrefix(n, cfg))

	// Flipping bit 12 (the lowest bit of the 12-bit prefix, i.e. the high
	// nibble boundary of the second nonce byte) must be rejected.
	n = &Note{Nonce: nonceWithPrefix(testServerID ^ 0x001)}
	err := checkNoncePrefix(n, cfg)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectWrongHub, rej.Kind)

	// Flipping bit 16 (the lowest bit of the second byte, outside the
	// 12-bit prefix) must still pass since it's not part of the compared
	// prefix.
	raw, decErr := hex.DecodeString(nonceWithPrefix(testServerID))
	require.NoError(t, decErr)
	raw[1] ^= 0x01 // low nibble of second byte, outside the 12-bit prefix
	n = &Note{Nonce: hex.EncodeToString(raw)}
	require.NoError(t, checkNoncePrefix(n, cfg))
}

func TestCheckNoncePrefix_Undecodable(t *testing.T) {
	cfg := ValidationConfig{ServerID: testServerID}
	n := &Note{Nonce: "not-hex"}
	err := checkNoncePrefix(n, cfg)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckClockSkew_ExactBoundary(t *testing.T) {
	now := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)
	cfg := ValidationConfig{Now: func() time.Time { return now }, SkewSeconds: 600}

	atBoundary := &Note{Timestamp: now.Add(-600 * time.Second).Format(time.RFC3339Nano)}
	require.NoError(t, checkClockSkew(atBoundary, cfg))

	pastBoundary := &Note{Timestamp: now.Add(-600*time.Second - time.Nanosecond).Format(time.RFC3339Nano)}
	err := checkClockSkew(pastBoundary, cfg)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectStale, rej.Kind)

	futureBoundary := &Note{Timestamp: now.Add(600 * time.Second).Format(time.RFC3339Nano)}
	require.NoError(t, checkClockSkew(futureBoundary, cfg))

	pastFuture := &Note{Timestamp: now.Add(600*time.Second + time.Nanosecond).Format(time.RFC3339Nano)}
	err = checkClockSkew(pastFuture, cfg)
	require.Error(t, err)
	rej, ok = err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectFuture, rej.Kind)
}

func TestCheckGateway_PlainURL(t *testing.T) {
	n := &Note{Gateway: "https://example.com/resolve"}
	assert.NoError(t, checkGateway(n))
}

func TestCheckGateway_AllowedTemplateVars(t *testing.T) {
	n := &Note{Gateway: "https://example.com/{iscc_id}/{datahash}"}
	assert.NoError(t, checkGateway(n))
}

func TestCheckGateway_UnknownTemplateVarRejected(t *testing.T) {
	n := &Note{Gateway: "https://example.com/{unknown_var}"}
	err := checkGateway(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckGateway_Empty(t *testing.T) {
	n := &Note{Gateway: ""}
	assert.NoError(t, checkGateway(n))
}

func TestCheckGateway_NotAbsoluteOrTemplate(t *testing.T) {
	n := &Note{Gateway: "not a url"}
	err := checkGateway(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckShape_MissingRequiredField(t *testing.T) {
	raw := []byte(`{"datahash":"` + sampleDatahash() + `","nonce":"` + nonceWithPrefix(testServerID) + `"}`)
	_, err := checkShape(raw)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckShape_InvalidJSON(t *testing.T) {
	_, err := checkShape([]byte("not json"))
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckFormat_BadIsccCode(t *testing.T) {
	n := &Note{
		IsccCode:  "not-an-iscc-code",
		Datahash:  sampleDatahash(),
		Nonce:     nonceWithPrefix(testServerID),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	err := checkFormat(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckFormat_BadDatahashPrefix(t *testing.T) {
	n := &Note{
		IsccCode:  sampleIsccCode(),
		Datahash:  "ffff" + hex.EncodeToString(make([]byte, 32)),
		Nonce:     nonceWithPrefix(testServerID),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	err := checkFormat(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckFormat_BadNonceLength(t *testing.T) {
	n := &Note{
		IsccCode:  sampleIsccCode(),
		Datahash:  sampleDatahash(),
		Nonce:     "abcd",
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	err := checkFormat(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckFormat_MissingZSuffix(t *testing.T) {
	n := &Note{
		IsccCode:  sampleIsccCode(),
		Datahash:  sampleDatahash(),
		Nonce:     nonceWithPrefix(testServerID),
		Timestamp: "2025-08-04T12:00:00.000",
	}
	err := checkFormat(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckUnits_InvalidUnitRejected(t *testing.T) {
	n := &Note{Units: []string{"not-a-unit"}}
	err := checkUnits(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckUnits_ValidUnitsAccepted(t *testing.T) {
	n := &Note{Units: []string{sampleUnit()}}
	assert.NoError(t, checkUnits(n))
}

func TestCheckUnits_CompositeIsccCodeRejectedAsUnit(t *testing.T) {
	n := &Note{Units: []string{sampleIsccCode()}}
	err := checkUnits(n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectMalformed, rej.Kind)
}

func TestCheckSignature_MalformedPubkey(t *testing.T) {
	raw := []byte(`{"signature":{"pubkey":"zz","proof":"` + hex.EncodeToString(make([]byte, 64)) + `"}}`)
	n := &Note{Signature: Signature{Pubkey: "zz", Proof: hex.EncodeToString(make([]byte, 64))}}
	err := checkSignature(raw, n)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectBadSignature, rej.Kind)
}

func TestCheckSignature_MalformedProof(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	n := &Note{Signature: Signature{Pubkey: hex.EncodeToString(pub), Proof: "zz"}}
	raw := []byte(`{}`)
	sigErr := checkSignature(raw, n)
	require.Error(t, sigErr)
	rej, ok := sigErr.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectBadSignature, rej.Kind)
}

func TestCheckSignature_VerificationFails(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)
	raw := signNote(t, buildNoteBody(nonceWithPrefix(testServerID), fixedNow))

	// Tamper with the note's datahash after signing without re-signing: the
	// proof no longer matches the canonicalized content.
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	body["datahash"] = "1e20" + hex.EncodeToString(append([]byte{0xff}, make([]byte, 31)...))
	tampered, err := json.Marshal(body)
	require.NoError(t, err)

	var n Note
	require.NoError(t, json.Unmarshal(tampered, &n))

	sigErr := checkSignature(tampered, &n)
	require.Error(t, sigErr)
	rej, ok := sigErr.(*RejectionError)
	require.True(t, ok)
	assert.Equal(t, RejectBadSignature, rej.Kind)
}

// TestValidate_AllRejectKinds drives Validate end to end for every
// RejectKind the validator can produce, confirming each check's failure
// propagates out through Validate with the right kind attached.
func TestValidate_AllRejectKinds(t *testing.T) {
	fixedNow := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  func() []byte
		cfg  ValidationConfig
		want RejectKind
	}{
		{
			name: "malformed JSON",
			raw:  func() []byte { return []byte("not json") },
			cfg:  validConfig(fixedNow),
			want: RejectMalformed,
		},
		{
			name: "wrong hub",
			raw: func() []byte {
				return signNote(t, buildNoteBody(nonceWithPrefix(testServerID^0x001), fixedNow))
			},
			cfg:  validConfig(fixedNow),
			want: RejectWrongHub,
		},
		{
			name: "stale timestamp",
			raw: func() []byte {
				return signNote(t, buildNoteBody(nonceWithPrefix(testServerID), fixedNow.Add(-700*time.Second)))
			},
			cfg:  validConfig(fixedNow),
			want: RejectStale,
		},
		{
			name: "future timestamp",
			raw: func() []byte {
				return signNote(t, buildNoteBody(nonceWithPrefix(testServerID), fixedNow.Add(700*time.Second)))
			},
			cfg:  validConfig(fixedNow),
			want: RejectFuture,
		},
		{
			name: "bad signature",
			raw: func() []byte {
				body := buildNoteBody(nonceWithPrefix(testServerID), fixedNow)
				signed := signNote(t, body)
				var m map[string]any
				require.NoError(t, json.Unmarshal(signed, &m))
				// Corrupt the proof without re-signing.
				m["signature"].(map[string]any)["proof"] = hex.EncodeToString(make([]byte, 64))
				tampered, err := json.Marshal(m)
				require.NoError(t, err)
				return tampered
			},
			cfg:  validConfig(fixedNow),
			want: RejectBadSignature,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.raw(), tc.cfg)
			require.Error(t, err)
			rej, ok := err.(*RejectionError)
			require.True(t, ok, "expected *RejectionError, got %T", err)
			assert.Equal(t, tc.want, rej.Kind, fmt.Sprintf("reason: %s", rej.Reason))
		})
	}
}
