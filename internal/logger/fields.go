package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the HUB's declaration
// pipeline: ingress, validation, sequencing, event storage, and receipt
// issuance. Use these keys consistently so log statements can be queried
// and aggregated without per-caller key drift.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request / Transport
	// ========================================================================
	KeyRequestID = "request_id" // per-request correlation id assigned at ingress
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // HTTP request path
	KeyStatus    = "status"     // HTTP status code
	KeyClientIP  = "client_ip"  // client IP address, without port
	KeyUserAgent = "user_agent"

	// ========================================================================
	// IsccNote / Declaration Fields
	// ========================================================================
	KeyIsccCode  = "iscc_code"  // the declared ISCC-CODE or ISCC-UNIT
	KeyDatahash  = "datahash"   // content datahash multihash
	KeyMetahash  = "metahash"   // metadata datahash multihash, if present
	KeyNonce     = "nonce"      // 128-bit client nonce (hex)
	KeyPubkey    = "pubkey"     // Ed25519 public key (multibase or hex)
	KeySignature = "signature"  // Ed25519 signature over the canonical note
	KeyTimestamp = "timestamp"  // client-asserted timestamp, if any

	// ========================================================================
	// Validation / Rejection
	// ========================================================================
	KeyRejectKind   = "reject_kind"   // MALFORMED, WRONG_HUB, STALE, FUTURE, BAD_SIGNATURE
	KeyRejectReason = "reject_reason" // human-readable rejection detail

	// ========================================================================
	// Sequencer / Minting
	// ========================================================================
	KeySeq          = "seq"            // gapless event sequence number
	KeyIsccID       = "iscc_id"        // minted ISCC-ID, ISCC: prefixed
	KeyServerID     = "server_id"      // 12-bit HUB server identifier
	KeyTimestampUs  = "timestamp_us"   // minted 52-bit microsecond timestamp
	KeyQueueDepth   = "queue_depth"    // writer-lane backlog depth at enqueue time
	KeyWriterLaneMs = "writer_lane_ms" // time spent inside the single-writer critical section
	KeyLastSeq      = "last_seq"       // previous committed seq, for gap detection
	KeyLastTsUs     = "last_ts_us"     // previous committed timestamp, for monotonicity checks

	// ========================================================================
	// Event Store / Backend
	// ========================================================================
	KeyStoreEngine  = "store_engine"      // memory, badger, postgres
	KeyStorePath    = "store_path"        // on-disk path or DSN (redacted)
	KeyDigest       = "digest"            // rolling blake3 log digest
	KeyDigestFrom   = "digest_from"       // inclusive range start for a digest query
	KeyDigestTo     = "digest_to"         // inclusive range end for a digest query
	KeyRowsAffected = "rows_affected"     // rows touched by a store mutation
	KeyTxnID        = "txn_id"            // backend transaction identifier
	KeyMigration    = "migration_version" // applied schema migration version

	// ========================================================================
	// Receipt / HUB Identity
	// ========================================================================
	KeyReceiptID  = "receipt_id"  // issued receipt identifier (URN)
	KeyController = "controller"  // did:web controller of the issuing key
	KeyKeyID      = "key_id"      // verification method / key id fragment
	KeyProofType  = "proof_type"  // VC proof type, e.g. DataIntegrityProof

	// ========================================================================
	// Archive / Anchoring
	// ========================================================================
	KeyArchiveKey    = "archive_key"    // object key of an exported archive segment
	KeyArchiveBucket = "archive_bucket" // destination bucket/container
	KeyArchiveRange  = "archive_range"  // seq range covered by an archive segment

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // machine-readable error code
	KeyComponent  = "component"   // subsystem emitting the log line
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // configured retry ceiling
)

// TraceID creates a trace ID field.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID creates a span ID field.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID creates a request correlation id field.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Method creates an HTTP method field.
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Path creates an HTTP path field.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Status creates an HTTP status code field.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// ClientIP creates a client IP field.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// UserAgent creates a user agent field.
func UserAgent(ua string) slog.Attr {
	return slog.String(KeyUserAgent, ua)
}

// IsccCode creates an ISCC-CODE/UNIT field.
func IsccCode(code string) slog.Attr {
	return slog.String(KeyIsccCode, code)
}

// Datahash creates a datahash field.
func Datahash(h string) slog.Attr {
	return slog.String(KeyDatahash, h)
}

// Metahash creates a metahash field.
func Metahash(h string) slog.Attr {
	return slog.String(KeyMetahash, h)
}

// Nonce creates a nonce field, hex-encoded.
func Nonce(n string) slog.Attr {
	return slog.String(KeyNonce, n)
}

// Pubkey creates a public key field.
func Pubkey(pk string) slog.Attr {
	return slog.String(KeyPubkey, pk)
}

// RejectKind creates a rejection-kind field.
func RejectKind(kind string) slog.Attr {
	return slog.String(KeyRejectKind, kind)
}

// RejectReason creates a rejection-reason field.
func RejectReason(reason string) slog.Attr {
	return slog.String(KeyRejectReason, reason)
}

// Seq creates a sequence number field.
func Seq(seq uint64) slog.Attr {
	return slog.Uint64(KeySeq, seq)
}

// IsccID creates an ISCC-ID field.
func IsccID(id string) slog.Attr {
	return slog.String(KeyIsccID, id)
}

// ServerID creates a server id field.
func ServerID(id uint16) slog.Attr {
	return slog.Uint64(KeyServerID, uint64(id))
}

// TimestampUs creates a microsecond timestamp field.
func TimestampUs(ts uint64) slog.Attr {
	return slog.Uint64(KeyTimestampUs, ts)
}

// QueueDepth creates a writer-lane queue depth field.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// WriterLaneMs creates a writer-lane duration field.
func WriterLaneMs(ms float64) slog.Attr {
	return slog.Float64(KeyWriterLaneMs, ms)
}

// LastSeq creates a previous-seq field, for gap-detection logging.
func LastSeq(seq uint64) slog.Attr {
	return slog.Uint64(KeyLastSeq, seq)
}

// StoreEngine creates a store engine field.
func StoreEngine(engine string) slog.Attr {
	return slog.String(KeyStoreEngine, engine)
}

// StorePath creates a store path/DSN field.
func StorePath(path string) slog.Attr {
	return slog.String(KeyStorePath, path)
}

// Digest creates a log digest field.
func Digest(d string) slog.Attr {
	return slog.String(KeyDigest, d)
}

// DigestRange creates a pair of digest range fields.
func DigestRange(from, to uint64) []slog.Attr {
	return []slog.Attr{
		slog.Uint64(KeyDigestFrom, from),
		slog.Uint64(KeyDigestTo, to),
	}
}

// RowsAffected creates a rows-affected field.
func RowsAffected(n int64) slog.Attr {
	return slog.Int64(KeyRowsAffected, n)
}

// TxnID creates a transaction id field.
func TxnID(id string) slog.Attr {
	return slog.String(KeyTxnID, id)
}

// Migration creates a schema migration version field.
func Migration(version uint) slog.Attr {
	return slog.Uint64(KeyMigration, uint64(version))
}

// ReceiptID creates a receipt id field.
func ReceiptID(id string) slog.Attr {
	return slog.String(KeyReceiptID, id)
}

// Controller creates a did:web controller field.
func Controller(c string) slog.Attr {
	return slog.String(KeyController, c)
}

// KeyIDAttr creates a verification method id field.
func KeyIDAttr(id string) slog.Attr {
	return slog.String(KeyKeyID, id)
}

// ArchiveKey creates an archive object key field.
func ArchiveKey(key string) slog.Attr {
	return slog.String(KeyArchiveKey, key)
}

// ArchiveBucket creates an archive bucket field.
func ArchiveBucket(bucket string) slog.Attr {
	return slog.String(KeyArchiveBucket, bucket)
}

// DurationMs creates a duration field in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err creates an error field. Returns an empty attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode creates a machine-readable error code field.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Component creates a subsystem/component field.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Attempt creates a retry attempt field.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries creates a retry ceiling field.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Group bundles a set of fields under a named group, useful when logging
// a full IsccNote or Event as a single structured sub-object.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return slog.Group(name, args...)
}

// fmtAttr is a small helper retained for call sites that need to format a
// non-string value into a field without importing fmt themselves.
func fmtAttr(key string, v any) slog.Attr {
	return slog.String(key, fmt.Sprintf("%v", v))
}
