// Package parser defines the Code Parser Adapter contract used by the
// Knowledge Indexer: turn one source file into a parent CodeEntity (its
// top-level type) plus one child CodeEntity per method/constructor/field.
package parser

// ChunkKind discriminates a parsed Chunk's role in the parent/child chunking scheme.
type ChunkKind string

const (
	ChunkClass     ChunkKind = "class"
	ChunkInterface ChunkKind = "interface"
	ChunkEnum      ChunkKind = "enum"
	ChunkMethod    ChunkKind = "method"
	ChunkField     ChunkKind = "field"
)

// Chunk is one parsed unit of a source file, parent or child.
type Chunk struct {
	Kind        ChunkKind
	ClassName   string
	MethodName  string
	FilePath    string
	SourceText  string
	Summary     string
	Annotations []string
	LineStart   int
	LineEnd     int
}

// ParseResult is everything an Adapter extracts from one source file.
type ParseResult struct {
	Chunks []Chunk
}

// Adapter is implemented once per source language. The reference
// implementation (goast) targets Go; other languages plug in here without
// touching the Indexer.
type Adapter interface {
	// CanParse reports whether path's extension/shape is handled by this adapter.
	CanParse(path string) bool
	// Parse extracts chunks from the file at path given its contents.
	Parse(path string, contents []byte) (ParseResult, error)
}
