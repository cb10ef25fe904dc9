package build

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ssharma1011/ragforge/internal/proto"
)

// goDiagnostic matches a standard `go build`/`go vet` line: "path/file.go:12:5: message".
var goDiagnostic = regexp.MustCompile(`^(\S+\.go):(\d+):(\d+):\s*(.+)$`)

// ParseGoOutput turns raw `go build`/`go vet`/`go test` combined output into
// structured BuildErrors, classifying each line's message into a BuildErrorKind.
func ParseGoOutput(rawLog string) []proto.BuildError {
	var errs []proto.BuildError
	for _, line := range strings.Split(rawLog, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := goDiagnostic.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		errs = append(errs, proto.BuildError{
			File:    m[1],
			Message: m[4],
			Kind:    classifyMessage(m[4]),
			Line:    lineNo,
			Column:  col,
		})
	}
	return errs
}

func classifyMessage(message string) proto.BuildErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "undefined:") || strings.Contains(lower, "undeclared name"):
		return proto.BuildErrorSymbolNotFound
	case strings.Contains(lower, "cannot use") || strings.Contains(lower, "mismatched types") ||
		strings.Contains(lower, "cannot convert") || strings.Contains(lower, "incompatible"):
		return proto.BuildErrorTypeMismatch
	case strings.Contains(lower, "expected ") || strings.Contains(lower, "unexpected ") ||
		strings.Contains(lower, "syntax error"):
		return proto.BuildErrorSyntax
	case strings.Contains(lower, "no required module provides package") ||
		strings.Contains(lower, "cannot find package") || strings.Contains(lower, "missing go.sum entry") ||
		strings.Contains(lower, "imported and not used"):
		return proto.BuildErrorImport
	default:
		return proto.BuildErrorUnknown
	}
}
