package fix

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cczona/pants/internal/engine"
	"github.com/cczona/pants/internal/snapshot"
)

// BatchSpec is one scheduled (tool, partition) unit. Seq is the batch's
// position in the overall submission order and keys its engine unit.
type BatchSpec struct {
	Tool      Tool
	Partition Partition
	Seq       int
}

// Sequencer orders batch executions and threads workspace state between
// them. Fixer batches fully precede formatter batches; within a
// category, batches sharing a file path (or a tool) are chained so the
// later batch's input reflects the earlier batch's output, while
// disjoint batches run concurrently under the engine.
type Sequencer struct {
	eng   *engine.Engine
	store *snapshot.Store
	log   zerolog.Logger
}

// NewSequencer wires a sequencer over an evaluation engine and a
// snapshot store.
func NewSequencer(eng *engine.Engine, store *snapshot.Store, log zerolog.Logger) *Sequencer {
	return &Sequencer{eng: eng, store: store, log: log}
}

// treeState is the run's only mutable shared value: the cumulative
// workspace tree, replaced atomically under the lock per changed batch.
type treeState struct {
	mu      sync.Mutex
	current *snapshot.Tree
}

func (s *treeState) snapshot() *snapshot.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *treeState) apply(out *snapshot.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snapshot.Merge(s.current, out)
}

// failureSet tracks the first failure per tool so the tool's remaining
// partitions can be abandoned without blocking sibling tools.
type failureSet struct {
	mu    sync.Mutex
	items map[string]error
}

func newFailureSet() *failureSet {
	return &failureSet{items: make(map[string]error)}
}

func (f *failureSet) record(tool string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[tool]; !ok {
		f.items[tool] = err
	}
}

func (f *failureSet) failed(tool string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[tool]
	return ok
}

func (f *failureSet) all() map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]error, len(f.items))
	for k, v := range f.items {
		out[k] = v
	}
	return out
}

// Run executes every batch exactly once and returns the results in
// submission order, the per-tool failures, and the final workspace tree
// (base layered with every successful batch's output).
func (s *Sequencer) Run(ctx context.Context, batches []BatchSpec, base *snapshot.Tree) ([]BatchResult, map[string]error, *snapshot.Tree, error) {
	state := &treeState{current: s.store.Intern(base)}
	failures := newFailureSet()

	var results []BatchResult
	for _, category := range []Category{CategoryFixer, CategoryFormatter} {
		var phase []BatchSpec
		for _, b := range batches {
			if b.Tool.Category == category {
				phase = append(phase, b)
			}
		}
		phaseResults, err := s.runPhase(ctx, phase, state, failures)
		if err != nil {
			return nil, nil, nil, err
		}
		results = append(results, phaseResults...)
	}
	return results, failures.all(), state.snapshot(), nil
}

// batchSlot carries one batch's completion signal and outcome. Waiting
// on a dependency happens here, outside the engine's worker pool, so a
// blocked batch never starves the batch it is waiting for.
type batchSlot struct {
	done   chan struct{}
	result *BatchResult
	err    error
}

// runPhase schedules one category's batches. Dependency edges: a batch
// waits on the latest earlier batch touching any of its paths, and on
// the previous batch of its own tool so a failed tool abandons the rest
// of its partitions deterministically.
func (s *Sequencer) runPhase(ctx context.Context, phase []BatchSpec, state *treeState, failures *failureSet) ([]BatchResult, error) {
	slots := make([]*batchSlot, len(phase))
	lastTouched := make(map[string]int)
	lastOfTool := make(map[string]int)

	for i, spec := range phase {
		var deps []int
		seen := make(map[int]struct{})
		addDep := func(idx int) {
			if _, ok := seen[idx]; ok {
				return
			}
			seen[idx] = struct{}{}
			deps = append(deps, idx)
		}
		for _, p := range spec.Partition.Files {
			if idx, ok := lastTouched[p]; ok {
				addDep(idx)
			}
			lastTouched[p] = i
		}
		if idx, ok := lastOfTool[spec.Tool.Name]; ok {
			addDep(idx)
		}
		lastOfTool[spec.Tool.Name] = i

		sl := &batchSlot{done: make(chan struct{})}
		slots[i] = sl
		go s.runBatch(ctx, spec, deps, slots, sl, state, failures)
	}

	var results []BatchResult
	for _, sl := range slots {
		select {
		case <-sl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if sl.err != nil {
			return nil, sl.err
		}
		if sl.result != nil {
			results = append(results, *sl.result)
		}
	}
	return results, nil
}

func (s *Sequencer) runBatch(ctx context.Context, spec BatchSpec, deps []int, slots []*batchSlot, sl *batchSlot, state *treeState, failures *failureSet) {
	defer close(sl.done)

	for _, j := range deps {
		select {
		case <-slots[j].done:
			// Sibling failures are isolated; only ordering matters here.
		case <-ctx.Done():
			sl.err = ctx.Err()
			return
		}
	}
	if failures.failed(spec.Tool.Name) {
		s.log.Debug().Str("tool", spec.Tool.Name).Msg("partition abandoned after earlier failure")
		return
	}

	key := fmt.Sprintf("batch/%s/%d", spec.Tool.Name, spec.Seq)
	task, err := s.eng.Submit(ctx, key, func(ctx context.Context) (any, error) {
		return ExecuteBatch(ctx, spec.Tool, spec.Partition, state.snapshot())
	})
	if err != nil {
		sl.err = err
		return
	}
	v, err := task.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			sl.err = err
			return
		}
		if !errors.Is(err, ErrExecution) {
			err = fmt.Errorf("%w: %s: %v", ErrExecution, spec.Tool.Name, err)
		}
		failures.record(spec.Tool.Name, err)
		s.log.Error().Err(err).Str("tool", spec.Tool.Name).Msg("batch execution failed")
		return
	}

	result := v.(BatchResult)
	if result.Changed() {
		state.apply(s.store.Intern(result.Output))
	}
	sl.result = &result
}
