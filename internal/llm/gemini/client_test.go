package gemini

import "testing"

func TestModelName(t *testing.T) {
	c := New("test-key", "gemini-2.0-flash")
	if c.ModelName() != "gemini-2.0-flash" {
		t.Fatalf("expected model name to be preserved, got %q", c.ModelName())
	}
}
