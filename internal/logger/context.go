package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single declaration
// as it moves through the ingress façade.
type LogContext struct {
	TraceID     string    // OpenTelemetry trace ID
	SpanID      string    // OpenTelemetry span ID
	RequestID   string    // ingress request correlation id
	ClientIP    string    // client IP address (without port)
	Seq         uint64    // minted sequence number, once sequenced
	IsccID      string    // minted ISCC-ID, once sequenced
	Nonce       string    // note nonce (hex), once parsed
	StartTime   time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithRequestID returns a copy with the request id set
func (lc *LogContext) WithRequestID(requestID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RequestID = requestID
	}
	return clone
}

// WithSequenced returns a copy annotated with the minted seq/iscc_id.
func (lc *LogContext) WithSequenced(seq uint64, isccID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Seq = seq
		clone.IsccID = isccID
	}
	return clone
}

// WithNonce returns a copy with the note's nonce set.
func (lc *LogContext) WithNonce(nonce string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Nonce = nonce
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
