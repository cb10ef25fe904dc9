// Package ollama adapts a local Ollama server to the llm.Client contract,
// used for the hybrid fast-routing path described in the design notes.
package ollama

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
)

// Client wraps the Ollama API client.
type Client struct {
	sdk   *api.Client
	model string
}

// New constructs a Client against hostURL (e.g. "http://localhost:11434") for model.
func New(hostURL, model string) *Client {
	parsed, err := url.Parse(hostURL)
	if err != nil {
		parsed, _ = url.Parse("http://localhost:11434")
	}
	return &Client{sdk: api.NewClient(parsed, http.DefaultClient), model: model}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := c.sdk.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Wrap(llmerrors.KindTransient, err, "ollama chat request failed")
	}

	return llm.CompletionResponse{
		Content:      response.Message.Content,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}, nil
}

var _ llm.Client = (*Client)(nil)
