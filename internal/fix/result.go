package fix

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/cczona/pants/internal/snapshot"
)

// BatchResult is the outcome of running one tool over one partition.
// Change status is derived from snapshot identity, never stored.
type BatchResult struct {
	ToolName string
	Input    *snapshot.Tree
	Output   *snapshot.Tree
	Stdout   string
	Stderr   string
}

// Changed reports whether the output tree differs from the input tree by
// content-addressed identity. A tool that returns its input snapshot
// unchanged reports false even though it was invoked.
func (r BatchResult) Changed() bool {
	return !snapshot.Diff(r.Input, r.Output).IdentityEqual
}

// AddedPaths lists paths present in the output but not the input, sorted.
func (r BatchResult) AddedPaths() []string {
	return snapshot.Diff(r.Input, r.Output).AddedPaths
}

// RemovedPaths lists paths present in the input but not the output, sorted.
func (r BatchResult) RemovedPaths() []string {
	return snapshot.Diff(r.Input, r.Output).RemovedPaths
}

// Message renders the human-readable summary for this result.
func (r BatchResult) Message() string {
	d := snapshot.Diff(r.Input, r.Output)
	return formatMessage(r.ToolName, !d.IdentityEqual, false, d.AddedPaths, d.RemovedPaths)
}

// Level is the report severity: WARN when the tool changed files, INFO
// otherwise. Changed lines surface by default; unchanged lines only in
// verbose output.
func (r BatchResult) Level() zerolog.Level {
	if r.Changed() {
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// DebugOutput renders the unconditional debug line carrying the tool's
// raw stdout and stderr.
func (r BatchResult) DebugOutput() string {
	return "Output from " + r.ToolName + "\n" + r.Stdout + "\n" + r.Stderr
}

func formatMessage(name string, changed, failed bool, added, removed []string) string {
	if failed {
		return name + " failed."
	}
	if !changed {
		return name + " made no changes."
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" made changes.")
	for _, p := range added {
		b.WriteString("\n  ")
		b.WriteString(p)
	}
	for _, p := range removed {
		b.WriteString("\n  ")
		b.WriteString(p)
	}
	return b.String()
}
