// Package contextbudget counts and enforces token budgets for the context
// assembled before a Code Generator or Fix Generator prompt is sent.
package contextbudget

import (
	"sort"

	"github.com/tiktoken-go/tokenizer"

	"github.com/ssharma1011/ragforge/internal/proto"
)

// Counter counts tokens for a given model family using tiktoken-compatible encoding.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter builds a Counter. All supported providers are approximated with
// the GPT-4 encoding, which is close enough for budget enforcement purposes.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, err
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text, falling back to a 4-chars-per-token
// approximation if the codec fails on malformed input.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		return len(text) / 4
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Fit greedily selects the highest-scored entries from bundle that together
// fit within maxTokens, preserving relative score order. Bundle is assumed
// already deduplicated by the Retrieval Engine.
func (c *Counter) Fit(bundle []proto.CodeContext, maxTokens int) []proto.CodeContext {
	ordered := make([]proto.CodeContext, len(bundle))
	copy(ordered, bundle)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	var out []proto.CodeContext
	used := 0
	for _, entry := range ordered {
		n := c.Count(entry.Content)
		if used+n > maxTokens {
			continue
		}
		out = append(out, entry)
		used += n
	}
	return out
}

// Truncate trims text to approximately limit tokens, truncating by
// proportional character count rather than a perfect token boundary.
func (c *Counter) Truncate(text string, limit int) string {
	current := c.Count(text)
	if current <= limit {
		return text
	}
	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) || charLimit <= 0 {
		return text
	}
	return text[:charLimit] + "..."
}
