package eventstore

import (
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// CanonicalEncoding returns the deterministic byte encoding of ev used for
// the Digest rolling hash (the badger backend stores the same json.Marshal
// bytes; the postgres backend stores columns), so that Digest(from, to) "depends only on committed event bytes in
// that range" (spec.md §8) regardless of backend.
func CanonicalEncoding(ev *Event) ([]byte, error) {
	// json.Marshal on a struct with fixed field order is already
	// deterministic; Event carries no maps, so no extra key-sorting pass
	// is needed the way pkg/note's client-supplied JSON requires one.
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("eventstore: canonical encoding: %w", err)
	}
	return b, nil
}

// RollingDigest folds the canonical encoding of each event in seq order
// into a single BLAKE3 hash: h = blake3(h_prev || canonical(event)), with
// h_0 the 32 zero bytes. This is the algorithm every backend's Digest
// method runs over its own stored range.
func RollingDigest(events []*Event) ([32]byte, error) {
	var h [32]byte
	for _, ev := range events {
		enc, err := CanonicalEncoding(ev)
		if err != nil {
			return [32]byte{}, err
		}
		buf := make([]byte, 0, len(h)+len(enc))
		buf = append(buf, h[:]...)
		buf = append(buf, enc...)
		h = blake3.Sum256(buf)
	}
	return h, nil
}
