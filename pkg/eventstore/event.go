// Package eventstore defines the append-only durable log of committed
// declarations (spec.md §4.4) behind a narrow Store interface, with
// interchangeable backends selected by configuration the way pkg/metadata
// picks a backend in the teacher.
package eventstore

import (
	"encoding/json"
	"time"
)

// Event is a server-minted, immutable record of one admitted declaration
// (spec.md §3). Events are created only by the sequencer's single writer
// lane; they are never mutated or deleted once committed.
type Event struct {
	// Seq is the gapless, strictly increasing primary key, starting at 1.
	Seq uint64 `json:"seq"`

	// IsccID is (TsMicros << 12 | ServerID), the minted identifier.
	IsccID string `json:"iscc_id"`

	// TsMicros is the microsecond timestamp packed into IsccID, strictly
	// increasing across all events of this HUB.
	TsMicros uint64 `json:"ts_micros"`

	// ServerID is this HUB's constant 12-bit identifier.
	ServerID uint16 `json:"server_id"`

	// NoteRaw is the verbatim JSON bytes of the admitted IsccNote, kept so
	// the Receipt Issuer can reproduce byte-identical receipts.
	NoteRaw json.RawMessage `json:"note"`

	// Pubkey is the Ed25519 public key bytes extracted from the note's
	// signature, hex-encoded.
	Pubkey string `json:"pubkey"`

	// Nonce is the note's hex-encoded nonce, unique across the entire log.
	Nonce string `json:"nonce"`

	// Datahash, IsccCode, Units and Metahash are projected from the note
	// for secondary lookups.
	Datahash string   `json:"datahash"`
	IsccCode string   `json:"iscc_code"`
	Units    []string `json:"units,omitempty"`
	Metahash string   `json:"metahash,omitempty"`

	// Gateway is projected from the note to serve the redirect hint on
	// GET /iscc-id/{iscc_id}.
	Gateway string `json:"gateway,omitempty"`

	// ReceivedAt is wallclock at ingress. Diagnostic only, never
	// authoritative for ordering (TsMicros is).
	ReceivedAt time.Time `json:"received_at"`
}

// Tail is the store's cheap (seq, ts_micros) watermark, consulted by the
// sequencer at the start of every commit.
type Tail struct {
	LastSeq      uint64
	LastTsMicros uint64
}
