package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for the declaration pipeline, following OpenTelemetry
// semantic conventions where applicable.
const (
	// ========================================================================
	// Request / transport attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrRequestID  = "request.id"
	AttrHTTPMethod = "http.method"
	AttrHTTPPath   = "http.path"
	AttrHTTPStatus = "http.status_code"

	// ========================================================================
	// Declaration attributes
	// ========================================================================
	AttrIsccCode = "declaration.iscc_code"
	AttrIsccID   = "declaration.iscc_id"
	AttrDatahash = "declaration.datahash"
	AttrNonce    = "declaration.nonce"
	AttrPubkey   = "declaration.pubkey"
	AttrSeq      = "declaration.seq"
	AttrTsMicros = "declaration.ts_micros"
	AttrServerID = "declaration.server_id"

	// ========================================================================
	// Rejection / error attributes
	// ========================================================================
	AttrRejectKind = "reject.kind"

	// ========================================================================
	// Event store attributes
	// ========================================================================
	AttrStoreName   = "store.name"
	AttrStoreEngine = "store.engine"
)

// Span names for the declaration pipeline.
const (
	// Root span for a declaration request, covering parse through receipt.
	SpanDeclare = "declare"

	SpanValidate = "validate"
	SpanSequence = "sequence"
	SpanAppend   = "store.append"
	SpanIssue    = "receipt.issue"

	SpanEventLookup = "store.lookup"
	SpanEventScan   = "store.scan"
	SpanLogDigest   = "store.digest"
)

// ClientIP returns an attribute for client IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// RequestID returns an attribute for the ingress correlation id.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// IsccCode returns an attribute for a declared ISCC-CODE or ISCC-UNIT.
func IsccCode(code string) attribute.KeyValue {
	return attribute.String(AttrIsccCode, code)
}

// IsccID returns an attribute for a minted ISCC-ID.
func IsccID(id string) attribute.KeyValue {
	return attribute.String(AttrIsccID, id)
}

// Datahash returns an attribute for a content datahash multihash.
func Datahash(hash string) attribute.KeyValue {
	return attribute.String(AttrDatahash, hash)
}

// Nonce returns an attribute for a declaration's hex-encoded nonce.
func Nonce(nonce string) attribute.KeyValue {
	return attribute.String(AttrNonce, nonce)
}

// Seq returns an attribute for a committed event's sequence number.
func Seq(seq uint64) attribute.KeyValue {
	return attribute.Int64(AttrSeq, int64(seq))
}

// TsMicros returns an attribute for a committed event's microsecond
// timestamp.
func TsMicros(ts uint64) attribute.KeyValue {
	return attribute.Int64(AttrTsMicros, int64(ts))
}

// ServerID returns an attribute for this HUB's server id.
func ServerID(id uint16) attribute.KeyValue {
	return attribute.Int64(AttrServerID, int64(id))
}

// RejectKind returns an attribute for a validation rejection reason.
func RejectKind(kind string) attribute.KeyValue {
	return attribute.String(AttrRejectKind, kind)
}

// StoreName returns an attribute for the event store backend's name.
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreEngine returns an attribute for the event store backend type.
func StoreEngine(engine string) attribute.KeyValue {
	return attribute.String(AttrStoreEngine, engine)
}

// StartDeclareSpan starts the root span for an ingress declaration,
// carrying the request correlation id.
func StartDeclareSpan(ctx context.Context, requestID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{RequestID(requestID)}, attrs...)
	return StartSpan(ctx, SpanDeclare, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for an event store operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("store.%s", operation), trace.WithAttributes(attrs...))
}
