package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPropagateToLogger(t *testing.T) {
	t.Run("adds tracing fields to log output", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)

		ctx := WithTraceID(context.Background(), "trace-abc")
		ctx = WithSessionKey(ctx, "sess-1")

		logger := LoggerFromContext(ctx, base)
		logger.Info().Msg("test")

		assert.Contains(t, buf.String(), "trace-abc")
		assert.Contains(t, buf.String(), "sess-1")
	})

	t.Run("bare context leaves logger unchanged", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)

		logger := LoggerFromContext(context.Background(), base)
		logger.Info().Msg("test")

		assert.NotContains(t, buf.String(), "trace_id")
	})
}
