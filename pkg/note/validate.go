package note

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iscc/iscc-hub/pkg/codec"
)

var structValidator = validator.New()

// allowedGatewayVars are the only RFC-6570 template variables a gateway
// URL may reference, per spec.md §4.2 check 5.
var allowedGatewayVars = map[string]bool{
	"iscc_id":   true,
	"iscc_code": true,
	"pubkey":    true,
	"datahash":  true,
}

var templateVarPattern = regexp.MustCompile(`\{([^{}]*)\}`)

const datahashHexLen = 68
const datahashPrefix = "1e20"
const nonceHexLen = 32

// Validate runs the seven ordered, first-failure-wins checks spec.md §4.2
// defines against the raw JSON body of an incoming declaration. raw is kept
// verbatim on the returned Note for canonicalization and receipt issuance.
func Validate(raw []byte, cfg ValidationConfig) (*Note, error) {
	n, err := checkShape(raw)
	if err != nil {
		return nil, err
	}
	if err := checkFormat(n); err != nil {
		return nil, err
	}
	if err := checkNoncePrefix(n, cfg); err != nil {
		return nil, err
	}
	if err := checkClockSkew(n, cfg); err != nil {
		return nil, err
	}
	if err := checkGateway(n); err != nil {
		return nil, err
	}
	if err := checkUnits(n); err != nil {
		return nil, err
	}
	if err := checkSignature(raw, n); err != nil {
		return nil, err
	}

	n.Raw = json.RawMessage(raw)
	return n, nil
}

// checkShape is the order-1 check: required fields present and correctly
// typed, forbidden empty strings/arrays.
func checkShape(raw []byte) (*Note, error) {
	var n Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, reject(RejectMalformed, "invalid JSON: %v", err)
	}
	if err := structValidator.Struct(&n); err != nil {
		return nil, reject(RejectMalformed, "shape: %v", err)
	}
	return &n, nil
}

// checkFormat is the order-2 check: iscc_code decodes, datahash/nonce hex
// shape, timestamp parses as RFC-3339 UTC with a literal Z suffix.
func checkFormat(n *Note) error {
	if _, err := codec.ParseIsccCode(n.IsccCode); err != nil {
		return reject(RejectMalformed, "iscc_code: %v", err)
	}
	if err := checkMultihashShape(n.Datahash); err != nil {
		return reject(RejectMalformed, "datahash: %v", err)
	}
	if n.Metahash != "" {
		if err := checkMultihashShape(n.Metahash); err != nil {
			return reject(RejectMalformed, "metahash: %v", err)
		}
	}
	if len(n.Nonce) != nonceHexLen {
		return reject(RejectMalformed, "nonce: want %d hex chars, got %d", nonceHexLen, len(n.Nonce))
	}
	if _, err := hex.DecodeString(n.Nonce); err != nil {
		return reject(RejectMalformed, "nonce: not hex: %v", err)
	}
	if !strings.HasSuffix(n.Timestamp, "Z") {
		return reject(RejectMalformed, "timestamp: missing literal Z suffix")
	}
	if _, err := time.Parse(time.RFC3339Nano, n.Timestamp); err != nil {
		return reject(RejectMalformed, "timestamp: %v", err)
	}
	return nil
}

// checkMultihashShape validates the 34-byte blake3 multihash shape shared
// by datahash and metahash: 68 hex characters, prefixed "1e20".
func checkMultihashShape(h string) error {
	if len(h) != datahashHexLen {
		return fmt.Errorf("want %d hex chars, got %d", datahashHexLen, len(h))
	}
	if !strings.HasPrefix(h, datahashPrefix) {
		return fmt.Errorf("missing %q multihash prefix", datahashPrefix)
	}
	if _, err := hex.DecodeString(h); err != nil {
		return fmt.Errorf("not hex: %w", err)
	}
	return nil
}

// checkNoncePrefix is the order-3 check: the nonce's top 12 bits must equal
// this HUB's server_id.
func checkNoncePrefix(n *Note, cfg ValidationConfig) error {
	raw, err := hex.DecodeString(n.Nonce)
	if err != nil || len(raw) < 2 {
		return reject(RejectMalformed, "nonce: not decodable")
	}
	// top 12 bits = first byte (8 bits) ‖ high nibble of second byte (4 bits)
	prefix := uint16(raw[0])<<4 | uint16(raw[1])>>4
	if prefix != cfg.ServerID {
		return reject(RejectWrongHub, "nonce prefix %03x does not match server_id %03x", prefix, cfg.ServerID)
	}
	return nil
}

// checkClockSkew is the order-4 check: |timestamp - now| <= skew.
func checkClockSkew(n *Note, cfg ValidationConfig) error {
	ts, err := time.Parse(time.RFC3339Nano, n.Timestamp)
	if err != nil {
		return reject(RejectMalformed, "timestamp: %v", err)
	}

	now := cfg.now()
	skew := cfg.skew()

	if ts.Before(now.Add(-skew)) {
		return reject(RejectStale, "timestamp %s is more than %s before %s", n.Timestamp, skew, now.Format(time.RFC3339))
	}
	if ts.After(now.Add(skew)) {
		return reject(RejectFuture, "timestamp %s is more than %s after %s", n.Timestamp, skew, now.Format(time.RFC3339))
	}
	return nil
}

// checkGateway is the order-5 check: if present, gateway must be an
// absolute http(s) URL or an RFC-6570 template using only the allowed
// variables.
func checkGateway(n *Note) error {
	if n.Gateway == "" {
		return nil
	}

	if u, err := url.Parse(n.Gateway); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && !strings.Contains(n.Gateway, "{") {
		return nil
	}

	for _, m := range templateVarPattern.FindAllStringSubmatch(n.Gateway, -1) {
		v := strings.TrimPrefix(m[1], "+") // RFC 6570 reserved-expansion operator
		if !allowedGatewayVars[v] {
			return reject(RejectMalformed, "gateway: template variable %q not allowed", v)
		}
	}
	if !templateVarPattern.MatchString(n.Gateway) {
		return reject(RejectMalformed, "gateway: not an absolute http(s) URL or a template")
	}
	return nil
}

// checkUnits is the order-6 check: if present, each unit decodes as an
// ISCC-UNIT header. Presence versus iscc_code's embedded units is not
// cross-checked (Open Question resolved in DESIGN.md).
func checkUnits(n *Note) error {
	for _, u := range n.Units {
		if _, err := codec.DecodeUnit(u); err != nil {
			return reject(RejectMalformed, "units: %v", err)
		}
	}
	return nil
}

// checkSignature is the order-7 check: canonicalize note minus
// signature.proof, verify the Ed25519 proof under the declared pubkey.
func checkSignature(raw []byte, n *Note) error {
	pub, err := hex.DecodeString(n.Signature.Pubkey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return reject(RejectBadSignature, "pubkey: malformed")
	}
	proof, err := hex.DecodeString(n.Signature.Proof)
	if err != nil || len(proof) != ed25519.SignatureSize {
		return reject(RejectBadSignature, "proof: malformed")
	}

	canonical, err := CanonicalizeNote(raw)
	if err != nil {
		return reject(RejectMalformed, "canonicalization: %v", err)
	}

	if !ed25519.Verify(pub, canonical, proof) {
		return reject(RejectBadSignature, "Ed25519 verification failed")
	}
	return nil
}
