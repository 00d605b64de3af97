package tools

import (
	"bytes"
	"context"

	"github.com/cczona/pants/internal/fix"
	"github.com/cczona/pants/internal/snapshot"
)

// NewlineFixer ensures every file ends with exactly one trailing
// newline. It registers as a fixer so formatters see its edits.
func NewlineFixer() fix.Tool {
	return fix.Tool{
		Name:      "newline-fixer",
		Category:  fix.CategoryFixer,
		Scope:     fix.ScopePerFile,
		Transform: rewrite(fixTrailingNewline),
	}
}

// WhitespaceFormatter strips trailing spaces and tabs from every line.
func WhitespaceFormatter() fix.Tool {
	return fix.Tool{
		Name:      "whitespace-formatter",
		Category:  fix.CategoryFormatter,
		Scope:     fix.ScopePerFile,
		Transform: rewrite(stripTrailingWhitespace),
	}
}

func rewrite(edit func([]byte) []byte) fix.TransformFunc {
	return func(_ context.Context, req fix.BatchRequest) (fix.BatchOutput, error) {
		files := req.Snapshot.Files()
		for i := range files {
			files[i].Content = edit(files[i].Content)
		}
		return fix.BatchOutput{Snapshot: snapshot.New(files...)}, nil
	}
}

func fixTrailingNewline(content []byte) []byte {
	if len(content) == 0 {
		return content
	}
	out := bytes.TrimRight(content, "\n")
	return append(out, '\n')
}

func stripTrailingWhitespace(content []byte) []byte {
	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	return bytes.Join(lines, []byte("\n"))
}
