package openai

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
)

// Embedder wraps the OpenAI embeddings endpoint.
type Embedder struct {
	sdk        openai.Client
	model      string
	dimensions int
}

// NewEmbedder constructs an Embedder for the given model, e.g.
// "text-embedding-3-small" (1536 dims) or "text-embedding-3-large" (3072,
// truncatable to 1024/768 via the dimensions parameter).
func NewEmbedder(client *Client, model string, dimensions int) *Embedder {
	return &Embedder{sdk: client.sdk, model: model, dimensions: dimensions}
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	copy(inputs, texts)

	params := openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindTransient, err, "openai embedding request failed")
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

var _ llm.Embedder = (*Embedder)(nil)
