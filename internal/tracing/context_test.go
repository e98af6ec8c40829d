package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextPropagation(t *testing.T) {
	t.Run("round-trips trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-123")
		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})

	t.Run("round-trips run id", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-456")
		assert.Equal(t, "run-456", GetRunID(ctx))
	})

	t.Run("round-trips session key", func(t *testing.T) {
		ctx := WithSessionKey(context.Background(), "sess-1")
		assert.Equal(t, "sess-1", GetSessionKey(ctx))
	})

	t.Run("empty values on bare context", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetRunID(ctx))
		assert.Empty(t, GetSessionKey(ctx))
	})

	t.Run("FromContext captures all fields", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "t")
		ctx = WithRunID(ctx, "r")
		ctx = WithSessionKey(ctx, "s")

		tc := FromContext(ctx)
		assert.Equal(t, "t", tc.TraceID)
		assert.Equal(t, "r", tc.RunID)
		assert.Equal(t, "s", tc.SessionKey)
	})

	t.Run("NewRequestContext assigns a fresh trace id", func(t *testing.T) {
		ctx := NewRequestContext(context.Background())
		assert.NotEmpty(t, GetTraceID(ctx))
	})

	t.Run("NewTraceID generates unique ids", func(t *testing.T) {
		assert.NotEqual(t, NewTraceID(), NewTraceID())
	})
}
