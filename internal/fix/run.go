package fix

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cczona/pants/internal/engine"
	"github.com/cczona/pants/internal/observability"
	"github.com/cczona/pants/internal/snapshot"
)

// Resolver supplies each tool's candidate set and snapshots of the
// workspace content. Both are assumed validated: targets exist, files
// exist.
type Resolver interface {
	Resolve(ctx context.Context, tool Tool, selectors []string) (CandidateSet, error)
	Snapshot(ctx context.Context, paths []string) (*snapshot.Tree, error)
}

// RunResult is the externally visible outcome of one run.
type RunResult struct {
	// Lines are the report lines, sorted ascending by tool name.
	Lines []string
	// Outcomes are the folded per-tool results behind the lines.
	Outcomes []ToolOutcome
	// Tree is the final merged workspace tree to write back.
	Tree *snapshot.Tree
	// Failures maps tool name to its planning or execution failure.
	Failures map[string]error
	// OK is true iff no tool failed. Changes alone never fail a run.
	OK bool
}

// Runner is the single exposed operation: selectors and options in,
// report plus final tree out.
type Runner struct {
	registry *Registry
	resolver Resolver
	store    *snapshot.Store
	log      zerolog.Logger
}

func NewRunner(registry *Registry, resolver Resolver, store *snapshot.Store, log zerolog.Logger) *Runner {
	return &Runner{registry: registry, resolver: resolver, store: store, log: log}
}

// Run filters tools, plans partitions, sequences and executes batches,
// and folds the report. Resolution errors abort the whole run; planning
// and execution errors isolate to their tool.
func (r *Runner) Run(ctx context.Context, selectors []string, opts Options) (*RunResult, error) {
	active := r.registry.ActiveTools(opts)
	eng := engine.New(opts.Workers)
	failures := make(map[string]error)

	type planned struct {
		tool       Tool
		partitions []Partition
	}
	var plans []planned
	planTasks := make([]*engine.Task, len(active))

	for i, tool := range active {
		cs, err := r.resolver.Resolve(ctx, tool, selectors)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrResolution, tool.Name, err)
		}

		tool := tool
		task, err := eng.Submit(ctx, "plan/"+tool.Name, func(ctx context.Context) (any, error) {
			return PlanPartitions(tool, cs)
		})
		if err != nil {
			return nil, err
		}
		planTasks[i] = task
	}

	for i, tool := range active {
		v, err := planTasks[i].Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// Strategy raised: the tool sits out the rest of this run.
			if !errors.Is(err, ErrPlanning) {
				err = fmt.Errorf("%w: %s: %v", ErrPlanning, tool.Name, err)
			}
			failures[tool.Name] = err
			r.log.Error().Err(err).Str("tool", tool.Name).Msg("partition planning failed")
			continue
		}
		plans = append(plans, planned{tool: tool, partitions: v.([]Partition)})
	}

	var batches []BatchSpec
	seq := 0
	for _, category := range []Category{CategoryFixer, CategoryFormatter} {
		for _, p := range plans {
			if p.tool.Category != category {
				continue
			}
			for _, partition := range p.partitions {
				batches = append(batches, BatchSpec{Tool: p.tool, Partition: partition, Seq: seq})
				seq++
			}
		}
	}

	base := snapshot.Empty()
	if len(batches) > 0 {
		union := unionPaths(batches)
		var err error
		base, err = r.resolver.Snapshot(ctx, union)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot: %v", ErrResolution, err)
		}
	}

	sequencer := NewSequencer(eng, r.store, r.log)
	results, execFailures, final, err := sequencer.Run(ctx, batches, base)
	if err != nil {
		return nil, err
	}
	for name, ferr := range execFailures {
		failures[name] = ferr
	}

	outcomes := Fold(results, execFailures)
	lines := NewReporter(r.log).Report(outcomes, results)

	ok := len(failures) == 0
	status := "ok"
	if !ok {
		status = "failed"
	}
	observability.RecordRun(status)

	return &RunResult{
		Lines:    lines,
		Outcomes: outcomes,
		Tree:     final,
		Failures: failures,
		OK:       ok,
	}, nil
}

func unionPaths(batches []BatchSpec) []string {
	var all []string
	for _, b := range batches {
		all = append(all, b.Partition.Files...)
	}
	return sortedCopy(dedupe(all))
}
