package circuit

import (
	"context"

	"github.com/ssharma1011/ragforge/internal/llm"
)

// Middleware rejects requests immediately while breaker is open, giving a
// failing provider time to recover instead of piling on retries.
func Middleware(breaker *Breaker) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{State: breaker.GetState()}
				}
				resp, err := next.Complete(ctx, req)
				breaker.Record(err == nil)
				return resp, err
			},
			next.ModelName,
		)
	}
}
