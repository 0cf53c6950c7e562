package log

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/grok-bridge/internal/tracing"
)

func TestTraceHook_StampsTraceAndOperation(t *testing.T) {
	hook := TraceHook()

	id := tracing.GenerateTraceID()
	require.True(t, strings.HasPrefix(id, "gb-"))

	ctx := tracing.WithTraceID(context.Background(), id)
	ctx = tracing.WithOperationName(ctx, "chat.completions")

	fields := hook.Apply(ctx, "upstream request")
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, id, fields[0].String)
	assert.Equal(t, "operation_name", fields[1].Key)
	assert.Equal(t, "chat.completions", fields[1].String)
}

func TestTraceHook_TraceIDOnly(t *testing.T) {
	ctx := tracing.WithTraceID(context.Background(), "gb-stream-42")

	fields := TraceHook().Apply(ctx, "frame parsed")
	require.Len(t, fields, 1)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, "gb-stream-42", fields[0].String)
}

func TestTraceHook_PreservesExistingFields(t *testing.T) {
	ctx := tracing.WithTraceID(context.Background(), "gb-stream-42")

	fields := TraceHook().Apply(ctx, "frame parsed", String("model", "grok-4"))
	require.Len(t, fields, 2)
	assert.Equal(t, "model", fields[0].Key)
	assert.Equal(t, "trace_id", fields[1].Key)
}

func TestTraceHook_BareContextAddsNothing(t *testing.T) {
	fields := TraceHook().Apply(context.Background(), "no trace")
	assert.Empty(t, fields)
}

func TestTraceHook_NilContextAddsNothing(t *testing.T) {
	fields := TraceHook().Apply(nil, "no trace")
	assert.Empty(t, fields)
}
