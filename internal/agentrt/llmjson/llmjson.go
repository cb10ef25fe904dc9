// Package llmjson defensively extracts strict JSON objects from raw LLM
// completion text: models routinely wrap JSON in markdown code fences, add
// leading prose, or leave trailing commas. Used by the Retrieval Planner and
// Code/Fix Generator agents to parse RetrievalPlan and Patch payloads.
package llmjson

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ExtractObject strips a leading/trailing markdown code fence (```json ...
// ``` or bare ```) and any surrounding prose, returning the first top-level
// JSON object or array found in text. LooksLikeJSON is tried first as a fast
// path for the common case of a clean, unwrapped response; the slower
// fence-stripping/brace-matching scan only runs when that pre-scan misses.
func ExtractObject(text string) (string, error) {
	if LooksLikeJSON(text) {
		if clean := strings.TrimSpace(stripFence(text)); gjson.Valid(clean) {
			return clean, nil
		}
	}

	candidate := stripFence(text)
	candidate = strings.TrimSpace(candidate)

	start := strings.IndexAny(candidate, "{[")
	if start < 0 {
		return "", fmt.Errorf("llmjson: no JSON object or array found in response")
	}
	end := matchingBraceEnd(candidate, start)
	if end < 0 {
		return "", fmt.Errorf("llmjson: unterminated JSON object in response")
	}
	candidate = candidate[start : end+1]

	if gjson.Valid(candidate) {
		return candidate, nil
	}

	repaired, err := repairTrailingCommas(candidate)
	if err != nil {
		return "", fmt.Errorf("llmjson: extracted text is not valid JSON: %w", err)
	}
	return repaired, nil
}

// repairTrailingCommas rebuilds a JSON object field-by-field with sjson,
// which recovers from the trailing commas models occasionally leave before
// a closing brace: gjson's ForEach simply skips the empty tail element, and
// sjson.SetRaw only ever emits well-formed JSON.
func repairTrailingCommas(candidate string) (string, error) {
	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return "", fmt.Errorf("trailing-comma repair only supports JSON objects, got %q", candidate)
	}

	rebuilt := "{}"
	var setErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		var err error
		rebuilt, err = sjson.SetRaw(rebuilt, key.String(), value.Raw)
		if err != nil {
			setErr = fmt.Errorf("setting field %q: %w", key.String(), err)
			return false
		}
		return true
	})
	if setErr != nil {
		return "", setErr
	}
	return rebuilt, nil
}

func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.SplitN(trimmed, "\n", 2)
	if len(lines) < 2 {
		return trimmed
	}
	body := lines[1]
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return body
}

// matchingBraceEnd returns the index of the closing brace/bracket matching
// the opener at start, tracking string literals so braces inside string
// values are not mistaken for structure.
func matchingBraceEnd(s string, start int) int {
	open := s[start]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return -1
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// LooksLikeJSON is a fast pre-scan (via jsonparser) that ExtractObject uses
// to try a clean, unwrapped response first; when it reports false,
// ExtractObject still runs its full fence-stripping scan.
func LooksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	_, dataType, _, err := jsonparser.Get(bytes.TrimSpace([]byte(stripFence(trimmed))))
	if err != nil {
		return false
	}
	return dataType == jsonparser.Object || dataType == jsonparser.Array
}

// DecodeOrdered decodes a JSON object preserving key order, used when a
// parsed LLM payload must be re-serialized into an audit log byte-for-byte
// stable with the model's own field ordering.
func DecodeOrdered(jsonText string) (*orderedmap.OrderedMap[string, any], error) {
	om := orderedmap.New[string, any]()
	if err := om.UnmarshalJSON([]byte(jsonText)); err != nil {
		return nil, fmt.Errorf("llmjson: decoding ordered map: %w", err)
	}
	return om, nil
}

// StableJSON round-trips jsonText through DecodeOrdered and re-marshals it,
// giving the Agent Runtime a canonical audit-log copy of an LLM's JSON
// payload that is stable regardless of how the model whitespace'd or
// fenced its response.
func StableJSON(jsonText string) (string, error) {
	om, err := DecodeOrdered(jsonText)
	if err != nil {
		return "", err
	}
	stable, err := om.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("llmjson: re-marshaling ordered map: %w", err)
	}
	return string(stable), nil
}
