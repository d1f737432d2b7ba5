// Package hubidentity manages the HUB's own Ed25519 signing identity: the
// keypair it uses to sign every IsccReceipt, and the did:web controller id
// and keyid derived from it for the receipt's `issuer`/`proof.verificationMethod`
// fields. Grounded on the teacher's pkg/identity credential lifecycle
// (generate/load/verify a long-lived identity), retargeted from user
// credentials to the HUB's own signing key.
package hubidentity

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidSeckey is returned when a configured private key is the wrong
// length or otherwise malformed.
var ErrInvalidSeckey = errors.New("hubidentity: invalid ed25519 private key")

// Identity is the HUB's signing keypair plus its derived public
// identifiers. Immutable after construction; safe for concurrent reads by
// every request goroutine.
type Identity struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	domain string

	controllerID string
	keyID        string
}

// Generate creates a fresh random Ed25519 keypair bound to domain.
func Generate(domain string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("hubidentity: generate key: %w", err)
	}
	return newIdentity(priv, pub, domain)
}

// Load builds an Identity from a hex-encoded Ed25519 private key, as read
// from configuration (`seckey`).
func Load(seckeyHex, domain string) (*Identity, error) {
	raw, err := hex.DecodeString(seckeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeckey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidSeckey, len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidSeckey
	}
	return newIdentity(priv, pub, domain)
}

func newIdentity(priv ed25519.PrivateKey, pub ed25519.PublicKey, domain string) (*Identity, error) {
	keyID, err := deriveKeyID(pub)
	if err != nil {
		return nil, err
	}

	return &Identity{
		priv:         priv,
		pub:          pub,
		domain:       domain,
		controllerID: "did:web:" + domain,
		keyID:        keyID,
	}, nil
}

// deriveKeyID derives a short, stable fingerprint from the public key via
// HKDF-SHA256, used as the fragment of the did:web verification method id
// (`did:web:<domain>#<keyID>`). HKDF rather than a raw hash prefix keeps the
// fingerprint namespaced to this package's use, the way the teacher's
// golang.org/x/crypto usage elsewhere derives purpose-specific subkeys
// rather than reusing a general-purpose hash.
func deriveKeyID(pub ed25519.PublicKey) (string, error) {
	kdf := hkdf.New(sha256.New, pub, nil, []byte("iscc-hub/keyid"))
	out := make([]byte, 8)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return "", fmt.Errorf("hubidentity: derive keyid: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// SeckeyHex returns the hex-encoded private key, for `iscchubctl keygen` to
// print and for config files to persist.
func (id *Identity) SeckeyHex() string { return hex.EncodeToString(id.priv) }

// PubkeyHex returns the hex-encoded public key.
func (id *Identity) PubkeyHex() string { return hex.EncodeToString(id.pub) }

// PublicKey returns the raw Ed25519 public key.
func (id *Identity) PublicKey() ed25519.PublicKey { return id.pub }

// ControllerID returns the did:web controller identifier for this HUB.
func (id *Identity) ControllerID() string { return id.controllerID }

// KeyID returns the verification method fragment identifying this key
// within the controller document.
func (id *Identity) KeyID() string { return id.keyID }

// VerificationMethod returns the full `did:web:<domain>#<keyID>` id used as
// a receipt's `proof.verificationMethod`.
func (id *Identity) VerificationMethod() string {
	return id.controllerID + "#" + id.keyID
}

// Sign signs digest with the HUB's private key.
func (id *Identity) Sign(digest []byte) []byte {
	return ed25519.Sign(id.priv, digest)
}

// Verify checks sig over digest under the HUB's own public key.
func (id *Identity) Verify(digest, sig []byte) bool {
	return ed25519.Verify(id.pub, digest, sig)
}
