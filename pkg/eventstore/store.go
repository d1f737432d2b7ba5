package eventstore

import "context"

// Store is the narrow durable-log interface every backend implements,
// mirroring the teacher's MetadataStore-with-swappable-backends shape.
// Implementations must honor unique constraints on Seq, IsccID and Nonce,
// and must not return Append success until the event is durable
// (spec.md §4.4: "writes must be fsync-equivalent before append returns").
type Store interface {
	// Append commits ev atomically. It is the only write operation; events
	// are never updated or deleted once appended. Returns *StoreError with
	// ErrDuplicateNonce if ev.Nonce already exists.
	Append(ctx context.Context, ev *Event) error

	// Tail returns the current (last_seq, last_ts_micros) watermark in
	// O(1), or the zero Tail if the log is empty.
	Tail(ctx context.Context) (Tail, error)

	GetBySeq(ctx context.Context, seq uint64) (*Event, error)
	GetByIsccID(ctx context.Context, isccID string) (*Event, error)
	GetByNonce(ctx context.Context, nonce string) (*Event, error)

	// Scan returns a contiguous slice of up to limit events starting at
	// seqFrom, ordered by seq ascending, for bulk log export.
	Scan(ctx context.Context, seqFrom uint64, limit int) ([]*Event, error)

	LookupByDatahash(ctx context.Context, datahash string) ([]*Event, error)
	LookupByIsccCode(ctx context.Context, isccCode string) ([]*Event, error)
	LookupByUnit(ctx context.Context, unit string) ([]*Event, error)

	// Digest returns a rolling BLAKE3 hash over the canonical encodings of
	// every committed event with seq in [from, to], for anchoring.
	Digest(ctx context.Context, from, to uint64) ([32]byte, error)

	// Close releases backend resources (file handles, connection pools).
	Close() error
}
