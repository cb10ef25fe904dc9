// Package anthropic adapts the Anthropic Messages API to the llm.Client contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
)

// Client wraps the Anthropic SDK client. Retries, circuit breaking, and
// timeouts are applied by the middleware layer, not here.
type Client struct {
	sdk   anthropic.Client
	model anthropic.Model
}

// New constructs a Client for the given model, e.g. "claude-sonnet-4-5".
func New(apiKey, model string) *Client {
	return &Client{
		sdk:   anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		model: anthropic.Model(model),
	}
}

func (c *Client) ModelName() string { return string(c.model) }

// ensureAlternation extracts system messages into a single system prompt and
// validates that the remaining messages strictly alternate user/assistant,
// starting and ending on user - the Anthropic API's hard requirement.
func ensureAlternation(messages []llm.CompletionMessage) (systemPrompt string, turns []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(turns) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}
	if turns[0].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", turns[0].Role)
	}
	if turns[len(turns)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", turns[len(turns)-1].Role)
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].Role == turns[i-1].Role {
			return "", nil, fmt.Errorf("alternation violation at index %d: consecutive %s messages", i, turns[i].Role)
		}
	}
	return systemPrompt, turns, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, turns, err := ensureAlternation(req.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.KindInput, fmt.Sprintf("message alternation error: %v", err))
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(req.MaxTokens),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	for _, m := range turns {
		role := anthropic.MessageParamRoleUser
		if m.Role == llm.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return llm.CompletionResponse{
		Content:      out.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// classifyError maps SDK errors into the package's retry taxonomy. The SDK
// embeds the HTTP status code in its error message rather than exposing a
// typed field we can rely on across versions, so it's extracted textually.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.Wrap(llmerrors.KindTransient, err, "request canceled or timed out")
	}

	errStr := err.Error()
	if status := extractStatusCode(errStr); status != 0 {
		return llmerrors.WithStatus(llmerrors.ClassifyHTTPStatus(status), status, errStr)
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"), strings.Contains(lower, "eof"), strings.Contains(lower, "reset"):
		return llmerrors.Wrap(llmerrors.KindTransient, err, "network error")
	case strings.Contains(lower, "auth"), strings.Contains(lower, "unauthorized"):
		return llmerrors.Wrap(llmerrors.KindFatal, err, "authentication error")
	default:
		return llmerrors.Wrap(llmerrors.KindTransient, err, "anthropic request failed")
	}
}

// extractStatusCode looks for a 3-digit HTTP status code embedded in the
// SDK's error string (e.g. "400 Bad Request: ...").
func extractStatusCode(errStr string) int {
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d ", code)) || strings.Contains(errStr, fmt.Sprintf("status %d", code)) {
			return code
		}
	}
	return 0
}
