package note

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/buger/jsonparser"
)

// CanonicalizeNote extracts the exact signing bytes for an IsccNote from
// the original request buffer. It never decodes the note into a Go struct
// and re-encodes it — per spec.md §9, that round trip is not guaranteed to
// be byte-stable. Instead it walks the raw JSON with byte-offset lookups,
// drops the signature.proof member, and re-emits every other member with
// keys sorted lexicographically by UTF-8 code point and RFC 8785-style
// minimal string escaping.
func CanonicalizeNote(raw []byte) ([]byte, error) {
	return canonicalizeObject(raw, nil)
}

// CanonicalizeJSONObject applies the same byte-offset, sorted-key
// canonicalization rule to an arbitrary top-level JSON object, dropping any
// member named in skip. pkg/receipt reuses this to canonicalize the
// IsccReceipt credential (skipping its top-level "proof" member) with the
// identical rule used for notes, per spec.md §4.5's "byte-identical signing
// input" requirement.
func CanonicalizeJSONObject(raw []byte, skip map[string]bool) ([]byte, error) {
	return canonicalizeObject(raw, skip)
}

// canonicalizeObject re-serializes the JSON object in raw with its members
// sorted by key, skipping any key present in skip. signature is special
// cased: its own "proof" member is dropped regardless of skip, matching
// the one canonicalization rule spec.md actually names.
func canonicalizeObject(raw []byte, skip map[string]bool) ([]byte, error) {
	type member struct {
		key string
		val []byte
	}
	var members []member

	err := jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		k, keyErr := jsonparser.ParseString(key)
		if keyErr != nil {
			return fmt.Errorf("unescape key: %w", keyErr)
		}
		if skip[k] {
			return nil
		}

		var cv []byte
		var err error
		if k == "signature" && dataType == jsonparser.Object {
			cv, err = canonicalizeObject(value, map[string]bool{"proof": true})
		} else {
			cv, err = canonicalizeValue(value, dataType)
		}
		if err != nil {
			return err
		}
		members = append(members, member{key: k, val: cv})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("note: canonicalize object: %w", err)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(canonicalString([]byte(m.key)))
		buf.WriteByte(':')
		buf.Write(m.val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalizeArray re-serializes a JSON array, preserving element order
// (spec.md's units[] is explicitly order-sensitive as submitted).
func canonicalizeArray(raw []byte) ([]byte, error) {
	var elems [][]byte
	var outerErr error

	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		cv, err := canonicalizeValue(value, dataType)
		if err != nil {
			outerErr = err
			return
		}
		elems = append(elems, cv)
	})
	if err != nil {
		return nil, fmt.Errorf("note: canonicalize array: %w", err)
	}
	if outerErr != nil {
		return nil, outerErr
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// canonicalizeValue dispatches by jsonparser's reported type. Numbers and
// booleans are returned as jsonparser gave them, which is already the
// original input text for that value, satisfying the "preserve exact input
// form" requirement for numbers without the implementation re-formatting
// floats.
func canonicalizeValue(value []byte, dataType jsonparser.ValueType) ([]byte, error) {
	switch dataType {
	case jsonparser.Object:
		return canonicalizeObject(value, nil)
	case jsonparser.Array:
		return canonicalizeArray(value)
	case jsonparser.String:
		unescaped, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, fmt.Errorf("note: unescape string: %w", err)
		}
		return canonicalString([]byte(unescaped)), nil
	case jsonparser.Number, jsonparser.Boolean:
		return value, nil
	case jsonparser.Null:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("note: unsupported JSON value type %v", dataType)
	}
}

// canonicalString quotes and minimally escapes s: only the characters JSON
// requires escaping (quote, backslash, and ASCII control characters) are
// escaped; everything else, including multi-byte UTF-8, passes through
// untouched.
func canonicalString(s []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for len(s) > 0 {
		r, size := utf8.DecodeRune(s)
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
		s = s[size:]
	}
	buf.WriteByte('"')
	return buf.Bytes()
}
