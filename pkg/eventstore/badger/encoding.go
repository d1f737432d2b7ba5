// Package badger is the default eventstore.Store backend: a single
// embedded BadgerDB v4 instance with SyncWrites enabled, mirroring the
// teacher's pkg/metadata/store/badger key-namespace-prefix design.
package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// Data Type        Prefix   Key Format                   Value Type
// ============================================================================
// Event by seq     "e:"     e:<seq big-endian uint64>    Event (JSON)
// iscc_id index    "i:"     i:<iscc_id>                  seq (binary)
// nonce index      "n:"     n:<nonce>                    seq (binary)
// datahash index   "h:"     h:<datahash>:<seq>           seq (binary)
// iscc_code index  "c:"     c:<iscc_code>:<seq>          seq (binary)
// unit index       "u:"     u:<unit>:<seq>               seq (binary)
// tail singleton   "t:"     t:tail                       Tail (JSON)

const (
	prefixEvent    = "e:"
	prefixIsccID   = "i:"
	prefixNonce    = "n:"
	prefixDatahash = "h:"
	prefixIsccCode = "c:"
	prefixUnit     = "u:"
	prefixTail     = "t:"
)

func keyEvent(seq uint64) []byte {
	buf := make([]byte, len(prefixEvent)+8)
	copy(buf, prefixEvent)
	binary.BigEndian.PutUint64(buf[len(prefixEvent):], seq)
	return buf
}

func keyEventPrefix() []byte { return []byte(prefixEvent) }

func keyIsccID(isccID string) []byte { return []byte(prefixIsccID + isccID) }

func keyNonce(nonce string) []byte { return []byte(prefixNonce + nonce) }

func keyDatahash(datahash string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixDatahash, datahash, seq))
}

func keyDatahashPrefix(datahash string) []byte {
	return []byte(prefixDatahash + datahash + ":")
}

func keyIsccCode(isccCode string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixIsccCode, isccCode, seq))
}

func keyIsccCodePrefix(isccCode string) []byte {
	return []byte(prefixIsccCode + isccCode + ":")
}

func keyUnit(unit string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixUnit, unit, seq))
}

func keyUnitPrefix(unit string) []byte {
	return []byte(prefixUnit + unit + ":")
}

func keyTail() []byte { return []byte(prefixTail + "tail") }

func encodeEvent(ev *eventstore.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

func decodeEvent(b []byte) (*eventstore.Event, error) {
	var ev eventstore.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func decodeSeq(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func encodeTail(tail eventstore.Tail) ([]byte, error) {
	return json.Marshal(tail)
}

func decodeTail(b []byte) (eventstore.Tail, error) {
	var tail eventstore.Tail
	if err := json.Unmarshal(b, &tail); err != nil {
		return eventstore.Tail{}, err
	}
	return tail, nil
}
