package log

import (
	"context"

	"github.com/streamgate/grok-bridge/internal/tracing"
)

// TraceHook returns a Hook that stamps trace id and operation name fields
// from ctx onto every log call.
func TraceHook() Hook {
	return HookFunc(traceFields)
}

func traceFields(ctx context.Context, _ string, fields ...Field) []Field {
	if ctx == nil {
		return fields
	}

	if traceID, ok := tracing.GetTraceID(ctx); ok {
		fields = append(fields, String("trace_id", traceID))
	}

	if opName, ok := tracing.GetOperationName(ctx); ok {
		fields = append(fields, String("operation_name", opName))
	}

	return fields
}
