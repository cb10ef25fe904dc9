// Package timeout provides per-request deadline middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"github.com/ssharma1011/ragforge/internal/llm"
)

// Middleware bounds every completion request to duration, regardless of the
// caller's own context deadline.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.ModelName,
		)
	}
}
