package build

import (
	"testing"

	"github.com/ssharma1011/ragforge/internal/proto"
)

func TestParseGoOutputClassifiesDiagnostics(t *testing.T) {
	raw := `# github.com/example/repo/internal/foo
internal/foo/foo.go:12:5: undefined: bar
internal/foo/foo.go:20:2: cannot use x (variable of type int) as string value in assignment
internal/foo/foo.go:30:1: syntax error: unexpected }
internal/foo/foo.go:1:8: no required module provides package github.com/missing/pkg
FAIL	github.com/example/repo/internal/foo [build failed]
`
	errs := ParseGoOutput(raw)
	if len(errs) != 4 {
		t.Fatalf("expected 4 parsed errors, got %d: %+v", len(errs), errs)
	}

	want := []proto.BuildErrorKind{
		proto.BuildErrorSymbolNotFound,
		proto.BuildErrorTypeMismatch,
		proto.BuildErrorSyntax,
		proto.BuildErrorImport,
	}
	for i, k := range want {
		if errs[i].Kind != k {
			t.Errorf("error %d: got kind %s, want %s", i, errs[i].Kind, k)
		}
		if errs[i].File != "internal/foo/foo.go" {
			t.Errorf("error %d: got file %q", i, errs[i].File)
		}
	}

	if errs[0].Line != 12 || errs[0].Column != 5 {
		t.Errorf("error 0: got line %d col %d, want 12/5", errs[0].Line, errs[0].Column)
	}
}

func TestParseGoOutputIgnoresNonDiagnosticLines(t *testing.T) {
	raw := "ok  \tgithub.com/example/repo/internal/foo\t0.042s\n"
	errs := ParseGoOutput(raw)
	if len(errs) != 0 {
		t.Fatalf("expected no errors parsed from a passing test summary, got %+v", errs)
	}
}

func TestBuildErrorSignatureStableAcrossIdenticalDiagnostics(t *testing.T) {
	a := proto.BuildError{Kind: proto.BuildErrorSymbolNotFound, File: "foo.go", Message: "undefined: bar"}
	b := proto.BuildError{Kind: proto.BuildErrorSymbolNotFound, File: "foo.go", Message: "undefined: bar"}
	if a.Signature() != b.Signature() {
		t.Fatalf("expected identical diagnostics to share a signature")
	}
}
