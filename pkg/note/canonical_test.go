package note

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeNote_SortsKeysAndDropsProof(t *testing.T) {
	raw := []byte(`{
		"nonce": "001f00000000000000000000000000",
		"iscc_code": "ISCC:AAAYYYYYYYYYYYYY",
		"signature": {"pubkey": "ab", "proof": "shouldbedropped", "version": 1},
		"datahash": "1e20aa",
		"timestamp": "2025-08-04T12:34:56.789Z"
	}`)

	got, err := CanonicalizeNote(raw)
	require.NoError(t, err)

	var asMap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got, &asMap))

	_, hasProofAtTopLevel := asMap["proof"]
	assert.False(t, hasProofAtTopLevel)

	var sig map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(asMap["signature"], &sig))
	_, hasProof := sig["proof"]
	assert.False(t, hasProof, "signature.proof must be dropped from the canonical form")
	assert.Contains(t, sig, "pubkey")
	assert.Contains(t, sig, "version")

	// Keys must appear in lexicographic order in the serialized bytes.
	idxDatahash := indexOfKey(got, "datahash")
	idxIsccCode := indexOfKey(got, "iscc_code")
	idxNonce := indexOfKey(got, "nonce")
	idxSignature := indexOfKey(got, "signature")
	idxTimestamp := indexOfKey(got, "timestamp")

	assert.Less(t, idxDatahash, idxIsccCode)
	assert.Less(t, idxIsccCode, idxNonce)
	assert.Less(t, idxNonce, idxSignature)
	assert.Less(t, idxSignature, idxTimestamp)
}

func TestCanonicalizeNote_Deterministic(t *testing.T) {
	raw := []byte(`{"b":1,"a":{"z":1,"y":2},"c":[3,1,2]}`)

	got1, err := CanonicalizeNote(raw)
	require.NoError(t, err)
	got2, err := CanonicalizeNote(raw)
	require.NoError(t, err)

	assert.Equal(t, got1, got2)
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":1,"c":[3,1,2]}`, string(got1))
}

func TestCanonicalizeNote_MinimalStringEscaping(t *testing.T) {
	raw := []byte(`{"s":"héllo \"world\"\nline"}`)

	got, err := CanonicalizeNote(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"héllo \"world\"\nline"}`, string(got))
}

func TestCanonicalizeNote_UnescapesBeforeReescaping(t *testing.T) {
	// \u0041 is the JSON escape for "A". A buggy implementation that
	// re-escapes the raw escaped bytes instead of the decoded rune would
	// leave the six-character escape sequence intact instead of "A".
	raw := []byte("{\"s\":\"caf\\u0041 A\"}")

	got, err := CanonicalizeNote(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"cafA A"}`, string(got))
}

func TestCanonicalizeNote_EscapedKey(t *testing.T) {
	raw := []byte(`{"a\"b": 1}`)

	got, err := CanonicalizeNote(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a\"b":1}`, string(got))
}

func indexOfKey(buf []byte, key string) int {
	needle := []byte(`"` + key + `":`)
	for i := 0; i+len(needle) <= len(buf); i++ {
		match := true
		for j := range needle {
			if buf[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
