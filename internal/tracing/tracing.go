// Package tracing carries a lightweight trace id and operation name through
// a request's context, the two fields the ambient logger stamps on log lines.
package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey       contextKey = "trace_id"
	operationNameKey contextKey = "operation_name"
)

// GenerateTraceID returns a new trace id, formatted as gb-{uuid}.
func GenerateTraceID() string {
	return fmt.Sprintf("gb-%s", uuid.New().String())
}

// WithTraceID stores a trace id in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID retrieves the trace id from ctx.
func GetTraceID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	id, ok := ctx.Value(traceIDKey).(string)

	return id, ok
}

// WithOperationName stores an operation name in ctx.
func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey, name)
}

// GetOperationName retrieves the operation name from ctx.
func GetOperationName(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	name, ok := ctx.Value(operationNameKey).(string)

	return name, ok
}
