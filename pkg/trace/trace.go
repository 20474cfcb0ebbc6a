package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceIDKey struct{}

// HeaderName is the HTTP header carrying a caller supplied trace id.
const HeaderName = "X-Trace-ID"

// GenerateTraceID returns a random 128-bit id encoded as hex.
func GenerateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext returns the trace id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext stores traceID in ctx.
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// Ensure returns ctx unchanged if it already carries a trace id, otherwise a
// child context with a fresh one.
func Ensure(ctx context.Context) context.Context {
	if FromContext(ctx) != "" {
		return ctx
	}
	return WithContext(ctx, GenerateTraceID())
}
