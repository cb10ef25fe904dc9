// Package llm defines the provider-agnostic contracts used by every agent:
// a chat completion client and a text embedding client. Concrete providers
// live in subpackages (anthropic, openai, ollama, gemini) and are wrapped by
// the retry/circuit/timeout middleware in the sibling llm/* packages.
package llm

import "context"

// Role identifies the speaker of a CompletionMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CompletionMessage is one turn in a chat completion request.
type CompletionMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is a request to generate a chat completion.
type CompletionRequest struct {
	Messages     []CompletionMessage
	Temperature  float32
	MaxTokens    int
	JSONResponse bool // when true, the OpenAI adapter requests a JSON response format; the other adapters ignore it
}

// CompletionResponse is the provider's answer to a CompletionRequest.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the contract every LLM provider adapter implements. Agents (the
// Requirement Analyzer, Retrieval Planner, Code Generator, and Fix Generator)
// depend only on this interface, never on a concrete provider.
type Client interface {
	// Complete generates a single completion for the given request.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	// ModelName reports the underlying model identifier, for logging.
	ModelName() string
}

// Embedder turns source text into a fixed-dimension vector, used by the
// Knowledge Indexer and the Retrieval Engine's semantic strategy.
type Embedder interface {
	// Embed returns one vector per input text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the embedding vector length.
	Dimensions() int
}

// Middleware wraps a Client with cross-cutting behavior (retry, circuit
// breaking, timeouts). Middlewares compose by nesting: retry.Middleware(circuit.Middleware(base)).
type Middleware func(Client) Client

// funcClient adapts a completion function and a model name into a Client,
// letting middleware packages build wrapped clients without a named type.
type funcClient struct {
	complete func(context.Context, CompletionRequest) (CompletionResponse, error)
	name     func() string
}

func (f *funcClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}
func (f *funcClient) ModelName() string { return f.name() }

// WrapClient builds a Client from a completion function and a model-name
// accessor. Middleware packages use this instead of declaring their own type.
func WrapClient(complete func(context.Context, CompletionRequest) (CompletionResponse, error), name func() string) Client {
	return &funcClient{complete: complete, name: name}
}

// NewSystemMessage builds a system-role CompletionMessage.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage builds a user-role CompletionMessage.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}
