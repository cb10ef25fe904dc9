// Package gemini adapts Google's GenAI SDK to the llm.Client contract,
// completing the closed provider set alongside anthropic/openai/ollama.
package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
)

// Client wraps a lazily-created genai.Client, following the teacher's
// defer-client-creation-to-first-call pattern since genai.NewClient needs a context.
type Client struct {
	sdk    *genai.Client
	apiKey string
	model  string
}

// New constructs a Client for the given model, e.g. "gemini-2.0-flash".
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if c.sdk == nil {
		sdk, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.Wrap(llmerrors.KindFatal, err, "failed to create Gemini client")
		}
		c.sdk = sdk
	}

	var contents []*genai.Content
	var systemInstruction string
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			systemInstruction += m.Content + "\n"
			continue
		}
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}

	maxTokens := int32(req.MaxTokens) //nolint:gosec // MaxTokens validated at the caller
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &req.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}

	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Wrap(llmerrors.KindTransient, err, "gemini request failed")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.CompletionResponse{}, llmerrors.New(llmerrors.KindInput, "empty response from Gemini")
	}

	return llm.CompletionResponse{Content: resp.Text()}, nil
}

var _ llm.Client = (*Client)(nil)
