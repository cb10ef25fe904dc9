package goast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssharma1011/ragforge/internal/parser"
)

const sample = `package sample

// Widget is a thing.
type Widget struct {
	Name string
}

// Greet says hello.
func (w *Widget) Greet() string {
	return "hello " + w.Name
}

func StandaloneFunc() {}
`

func TestParseProducesParentAndChildChunks(t *testing.T) {
	a := New()
	require.True(t, a.CanParse("widget.go"))
	require.False(t, a.CanParse("widget_test.go"))

	result, err := a.Parse("widget.go", []byte(sample))
	require.NoError(t, err)

	var sawType, sawMethod, sawFunc bool
	for _, c := range result.Chunks {
		switch {
		case c.Kind == parser.ChunkClass && c.ClassName == "Widget":
			sawType = true
		case c.Kind == parser.ChunkMethod && c.MethodName == "Greet" && c.ClassName == "Widget":
			sawMethod = true
		case c.Kind == parser.ChunkMethod && c.MethodName == "StandaloneFunc" && c.ClassName == "":
			sawFunc = true
		}
	}
	require.True(t, sawType)
	require.True(t, sawMethod)
	require.True(t, sawFunc)
}
