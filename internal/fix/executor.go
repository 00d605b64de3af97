package fix

import (
	"context"
	"fmt"
	"time"

	"github.com/cczona/pants/internal/observability"
	"github.com/cczona/pants/internal/snapshot"
)

// ExecuteBatch invokes one tool's transformation over one partition.
// The input tree is the current workspace restricted to the partition's
// files; the tool's returned content becomes the output tree. The
// executor never mutates shared state, that is the sequencer's job.
func ExecuteBatch(ctx context.Context, tool Tool, p Partition, current *snapshot.Tree) (BatchResult, error) {
	input := current.Restrict(p.Files)
	req := BatchRequest{
		ToolName: tool.Name,
		Files:    p.Files,
		Metadata: p.Metadata,
		Snapshot: input,
	}

	start := time.Now()
	out, err := runTransform(ctx, tool, req)
	if err != nil {
		observability.RecordBatch(tool.Name, "failed", time.Since(start))
		return BatchResult{}, fmt.Errorf("%w: %s: %v", ErrExecution, tool.Name, err)
	}
	if out.Snapshot == nil {
		observability.RecordBatch(tool.Name, "failed", time.Since(start))
		return BatchResult{}, fmt.Errorf("%w: %s: transform returned no snapshot", ErrExecution, tool.Name)
	}

	result := BatchResult{
		ToolName: tool.Name,
		Input:    input,
		Output:   out.Snapshot,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
	}
	status := "unchanged"
	if result.Changed() {
		status = "changed"
	}
	observability.RecordBatch(tool.Name, status, time.Since(start))
	return result, nil
}

// runTransform converts a panicking transform into an ordinary error so
// one broken tool cannot take down the run.
func runTransform(ctx context.Context, tool Tool, req BatchRequest) (out BatchOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return tool.Transform(ctx, req)
}
