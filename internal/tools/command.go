package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cczona/pants/internal/fix"
	"github.com/cczona/pants/internal/snapshot"
)

// CommandTool wraps an external in-place editing binary (clang-format
// style) as a tool descriptor. The partition's files are materialized
// into a scratch directory, the binary runs over them, and whatever it
// left behind becomes the output snapshot.
type CommandTool struct {
	Name     string
	Category fix.Category
	Requires []string
	Bin      string
	Args     []string
	Runner   CommandRunner
}

// Descriptor builds the registrable tool. A nil Runner defaults to
// local execution.
func (c CommandTool) Descriptor() fix.Tool {
	runner := c.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return fix.Tool{
		Name:     c.Name,
		Category: c.Category,
		Scope:    fix.ScopePerFile,
		Requires: c.Requires,
		Transform: func(ctx context.Context, req fix.BatchRequest) (fix.BatchOutput, error) {
			return runCommand(ctx, runner, c.Bin, c.Args, req)
		},
	}
}

func runCommand(ctx context.Context, runner CommandRunner, bin string, args []string, req fix.BatchRequest) (fix.BatchOutput, error) {
	scratch, err := os.MkdirTemp("", "fixctl-batch-*")
	if err != nil {
		return fix.BatchOutput{}, err
	}
	defer os.RemoveAll(scratch)

	for _, f := range req.Snapshot.Files() {
		abs := filepath.Join(scratch, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fix.BatchOutput{}, err
		}
		if err := os.WriteFile(abs, f.Content, 0o644); err != nil {
			return fix.BatchOutput{}, err
		}
	}

	argv := append(append([]string{}, args...), req.Files...)
	stdout, stderr, code, err := runner.Run(ctx, scratch, bin, argv...)
	if err != nil {
		return fix.BatchOutput{}, fmt.Errorf("%s exited %d: %w", bin, code, err)
	}

	files := make([]snapshot.File, 0, len(req.Files))
	for _, p := range req.Files {
		content, err := os.ReadFile(filepath.Join(scratch, filepath.FromSlash(p)))
		if err != nil {
			if os.IsNotExist(err) {
				// The tool deleted the file; it leaves the output tree.
				continue
			}
			return fix.BatchOutput{}, err
		}
		files = append(files, snapshot.File{Path: p, Content: content})
	}

	return fix.BatchOutput{
		Snapshot: snapshot.New(files...),
		Stdout:   string(stdout),
		Stderr:   string(stderr),
	}, nil
}
