// Package receipt builds and signs the IsccReceipt: a W3C Verifiable
// Credential shaped document binding a committed event to its minted
// ISCC-ID, signed by the HUB's own key. Grounded on the signer pattern in
// other_examples' slowdrip receipts/signer.go (canonical-digest-then-
// ed25519.Sign, with a matching Verify), and on pkg/note/canonical.go for
// the canonicalization rule itself — spec.md §4.5 requires the same
// byte-exact discipline for the credential signing input as for note
// verification.
package receipt

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/hubidentity"
	"github.com/iscc/iscc-hub/pkg/note"
)

// ProofType is the signature suite this HUB uses. There is no registered
// "Ed25519Signature2020"-equivalent for a hex-encoded proof value in this
// domain, so the HUB names its own suite rather than misuse a W3C suite
// whose encoding rules it does not follow byte-for-byte.
const ProofType = "IsccHubEd25519Signature2025"

const ProofPurpose = "assertionMethod"

const contextURL = "https://www.w3.org/2018/credentials/v1"
const credentialType = "IsccDeclarationCredential"

// CredentialSubject is the VC subject: the committed event's minted
// identifiers plus the verbatim note that earned them.
type CredentialSubject struct {
	IsccID   string          `json:"iscc_id"`
	Seq      uint64          `json:"seq"`
	TsMicros uint64          `json:"ts_micros"`
	ServerID uint16          `json:"server_id"`
	Note     json.RawMessage `json:"note"`
}

// Proof is the Ed25519 proof over the canonicalized credential.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
}

// Receipt is the IsccReceipt: a W3C-VC-shaped document. Field order here
// does not affect signing — canonicalization re-sorts keys independently —
// but is kept VC-conventional for readers.
type Receipt struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	IssuanceDate      string            `json:"issuanceDate"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	Proof             *Proof            `json:"proof,omitempty"`
}

// Issue builds and signs the receipt for a committed event.
func Issue(ev *eventstore.Event, id *hubidentity.Identity) (*Receipt, error) {
	issuanceDate := time.UnixMicro(int64(ev.TsMicros)).UTC().Format(time.RFC3339Nano)

	unsigned := &Receipt{
		Context:      []string{contextURL},
		Type:         []string{"VerifiableCredential", credentialType},
		Issuer:       id.ControllerID(),
		IssuanceDate: issuanceDate,
		CredentialSubject: CredentialSubject{
			IsccID:   ev.IsccID,
			Seq:      ev.Seq,
			TsMicros: ev.TsMicros,
			ServerID: ev.ServerID,
			Note:     ev.NoteRaw,
		},
	}

	digest, err := canonicalDigest(unsigned)
	if err != nil {
		return nil, fmt.Errorf("receipt: canonicalize: %w", err)
	}

	sig := id.Sign(digest)

	unsigned.Proof = &Proof{
		Type: ProofType,
		// Created comes from the event's own received_at rather than
		// time.Now(), so re-issuing a receipt for an already-committed
		// event (the idempotent-resubmission path) reproduces
		// byte-identical output.
		Created:            ev.ReceivedAt.UTC().Format(time.RFC3339Nano),
		VerificationMethod: id.VerificationMethod(),
		ProofPurpose:       ProofPurpose,
		ProofValue:         hex.EncodeToString(sig),
	}

	return unsigned, nil
}

// Verify re-derives the canonical signing input from r (with its proof
// stripped) and checks ProofValue under pubkey, so that a holder of a
// receipt can check it against the HUB's public key.
func Verify(r *Receipt, pubkey ed25519.PublicKey) error {
	if r.Proof == nil {
		return fmt.Errorf("receipt: no proof present")
	}

	sig, err := hex.DecodeString(r.Proof.ProofValue)
	if err != nil {
		return fmt.Errorf("receipt: decode proof value: %w", err)
	}

	unsigned := *r
	unsigned.Proof = nil
	digest, err := canonicalDigest(&unsigned)
	if err != nil {
		return fmt.Errorf("receipt: canonicalize: %w", err)
	}

	if !ed25519.Verify(pubkey, digest, sig) {
		return fmt.Errorf("receipt: signature verification failed")
	}
	return nil
}

// canonicalDigest marshals r (whose Proof must be nil) and re-serializes it
// under the same sorted-key, minimal-escaping rule pkg/note uses for
// notes, omitting the (absent) "proof" member.
func canonicalDigest(r *Receipt) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return note.CanonicalizeJSONObject(raw, map[string]bool{"proof": true})
}
