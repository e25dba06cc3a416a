// Package tracing provides functions to help integrate logging with tracing.
package tracing

import (
	"context"

	"github.com/birdie-ai/ormkit/slog"
	"github.com/google/uuid"
)

// Ensure returns a context with a trace ID and a logger logging it as `trace_id`.
// The trace ID already on ctx is kept, a new UUID is generated otherwise.
// Use slog.FromCtx(ctx) to retrieve the logger.
func Ensure(ctx context.Context) (context.Context, string) {
	traceID, ok := CtxGetTraceID(ctx)
	if ok {
		return ctx, traceID
	}
	traceID = uuid.NewString()
	ctx = CtxWithTraceID(ctx, traceID)
	return slog.NewContext(ctx, slog.FromCtx(ctx).With("trace_id", traceID)), traceID
}

// CtxWithTraceID creates a new [context.Context] with the given trace ID associated with it.
// Call [CtxGetTraceID] to retrieve the trace ID.
func CtxWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// CtxGetTraceID gets the trace ID associated with this context.
// Return the trace ID and true if there is a trace ID, empty and false otherwise.
func CtxGetTraceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey).(string)
	return id, ok && id != ""
}

type key int

const traceIDKey key = 0
