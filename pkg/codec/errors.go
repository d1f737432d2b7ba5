// Package codec encodes and decodes ISCC-ID bodies and parses ISCC-CODE and
// ISCC-UNIT headers. It does not implement the general ISCC codec; per
// spec.md §1, that library is an external dependency this core only
// consumes for full codes.
package codec

import "errors"

// ErrMalformed is returned for any structurally invalid ISCC string: bad
// prefix, bad alphabet, wrong decoded length, or wrong header nibbles.
var ErrMalformed = errors.New("iscc: malformed")
