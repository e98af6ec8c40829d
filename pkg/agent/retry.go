package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smithers-ai/smithers/internal/observability"
)

// completeWithRetry calls the provider with exponential backoff.
// Transient failures are retried up to maxRetries attempts; permanent
// failures (malformed responses included) return immediately.
func completeWithRetry(ctx context.Context, provider Provider, request Request, maxRetries int, logger zerolog.Logger) (*Response, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		start := time.Now()
		response, err := provider.Complete(ctx, request)
		observability.RecordModelCall(provider.Name(), time.Since(start), err == nil)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}

		// Last attempt, don't wait
		if attempt == maxRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := time.Duration(1<<attempt) * time.Second
		observability.RecordModelRetry(provider.Name())
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying model call after transient error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}
