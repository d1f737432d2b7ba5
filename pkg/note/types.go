package note

import (
	"encoding/json"
	"time"
)

// Signature is the Ed25519 signature record attached to an IsccNote.
// Pubkey and Proof are hex-encoded, matching the hex encoding the note
// already uses for datahash and nonce.
type Signature struct {
	Version    int    `json:"version" validate:"required"`
	Pubkey     string `json:"pubkey" validate:"required,hexadecimal,len=64"`
	Proof      string `json:"proof" validate:"required,hexadecimal,len=128"`
	Controller string `json:"controller,omitempty"`
	KeyID      string `json:"keyid,omitempty"`
}

// Note is a client-submitted, signed declaration payload (IsccNote in
// spec.md §3). It is immutable once received: the validator never rewrites
// a field, it only accepts or rejects the note as given.
type Note struct {
	IsccCode  string    `json:"iscc_code" validate:"required"`
	Datahash  string    `json:"datahash" validate:"required"`
	Nonce     string    `json:"nonce" validate:"required"`
	Timestamp string    `json:"timestamp" validate:"required"`
	Gateway   string    `json:"gateway,omitempty"`
	Units     []string  `json:"units,omitempty" validate:"omitempty,min=1,dive,required"`
	Metahash  string    `json:"metahash,omitempty"`
	Signature Signature `json:"signature" validate:"required"`

	// Raw holds the exact bytes the client sent, for receipt reproduction
	// and re-canonicalization by auditors. Never marshaled back out as a
	// nested field; handlers/receipts embed it directly.
	Raw json.RawMessage `json:"-"`
}

// ValidationConfig parameterizes the checks that depend on HUB-instance
// state rather than being fixed by the wire format.
type ValidationConfig struct {
	// ServerID is this HUB's 12-bit identifier. Nonces not prefixed with
	// it are rejected as WRONG_HUB.
	ServerID uint16

	// SkewSeconds bounds how far note.timestamp may diverge from wall
	// clock at receipt. Zero means the package default of 600s.
	SkewSeconds int

	// Now returns the current time, overridable in tests. Nil means
	// time.Now().
	Now func() time.Time
}

// DefaultSkewSeconds is spec.md §3's ±10 minute clock-skew tolerance.
const DefaultSkewSeconds = 600

func (c ValidationConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c ValidationConfig) skew() time.Duration {
	if c.SkewSeconds <= 0 {
		return DefaultSkewSeconds * time.Second
	}
	return time.Duration(c.SkewSeconds) * time.Second
}
