// Package openai adapts the OpenAI Chat Completions API to the llm.Client
// contract, plus a text-embedding client for the Knowledge Indexer.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
)

// Client wraps the official OpenAI SDK client.
type Client struct {
	sdk   openai.Client
	model string
}

// New constructs a Client for the given chat model, e.g. "gpt-4o".
func New(apiKey, model string) *Client {
	return &Client{sdk: openai.NewClient(option.WithAPIKey(apiKey)), model: model}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONResponse {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Wrap(llmerrors.KindTransient, err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.KindInput, "empty response from OpenAI")
	}

	return llm.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

var _ llm.Client = (*Client)(nil)
