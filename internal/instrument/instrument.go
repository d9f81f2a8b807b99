// Package instrument carries the portal's audit trail and Prometheus metrics.
package instrument

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const traceIDKey ctxKey = iota

// Recorder receives business events for admin mutations.
type Recorder interface {
	Record(ctx context.Context, action, entity string, recordID int64, metadata map[string]any)
}

// WithTraceID sets the trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func newTraceID() string {
	return uuid.New().String()
}
