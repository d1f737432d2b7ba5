package sequencer

import (
	"errors"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// ErrBusy is returned when the writer lane's request queue is full.
var ErrBusy = errors.New("sequencer: writer lane busy")

// ErrCancelled is returned when the caller's context is cancelled before
// the critical section commits. The event store is left untouched.
var ErrCancelled = errors.New("sequencer: cancelled before commit")

// ErrClockExhausted is returned when ts_µs would overflow 52 bits. This is
// fatal for the HUB instance: the writer lane keeps running (rejecting
// every further submission with the same error) rather than crash-looping
// the process.
var ErrClockExhausted = errors.New("sequencer: clock exhausted, ts_micros exceeds 52 bits")

// DuplicateNonceError is returned when a note's nonce was already admitted.
// Callers (the ingress façade) use Existing to return the original receipt
// instead of minting a new one.
type DuplicateNonceError struct {
	Existing *eventstore.Event
}

func (e *DuplicateNonceError) Error() string {
	return "sequencer: nonce already admitted at seq " + itoa(e.Existing.Seq)
}

// ConflictError is returned when a nonce was already admitted with
// different note content than the one being submitted now. Unlike
// DuplicateNonceError, which marks an idempotent resubmission, this is a
// genuine conflict: the caller must not be told their note was accepted.
type ConflictError struct {
	Existing *eventstore.Event
}

func (e *ConflictError) Error() string {
	return "sequencer: nonce already admitted at seq " + itoa(e.Existing.Seq) + " with different content"
}

// TransientError wraps a store failure that the caller may retry; the
// nonce has not been consumed.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "sequencer: transient store error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
