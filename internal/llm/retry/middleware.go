// Package retry provides retry middleware for LLM clients, applying the
// exponential-backoff schedule for transient errors.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
	"github.com/ssharma1011/ragforge/internal/logx"
)

// ShouldRetry reports whether err warrants another attempt. Classified
// errors defer to llmerrors.Error.Retryable; unclassified errors are
// retried by default so transient network failures aren't dropped.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var classified *llmerrors.Error
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	return true
}

// Middleware wraps an llm.Client, retrying failed completions according to
// policy. When the attempts run out, or ShouldRetry rejects an error, it
// returns the last error unchanged.
func Middleware(policy llmerrors.RetryPolicy, logger *logx.Logger) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error
				delay := policy.InitialDelay

				for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
					if attempt > 1 {
						logger.Warn("LLM retry %d/%d (backoff %v): %v", attempt, policy.MaxAttempts, delay, lastErr)
						select {
						case <-ctx.Done():
							return llm.CompletionResponse{}, ctx.Err()
						case <-time.After(delay):
						}
						delay = time.Duration(float64(delay) * policy.Factor)
						if delay > policy.MaxDelay {
							delay = policy.MaxDelay
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err
					if !ShouldRetry(err) {
						break
					}
				}

				logger.Error("LLM retries exhausted or non-retryable: %v", lastErr)
				return llm.CompletionResponse{}, lastErr
			},
			next.ModelName,
		)
	}
}
