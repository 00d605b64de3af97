// Package engine runs named units of work asynchronously with
// per-key memoization. Callers submit closures and await futures; the
// engine owns scheduling and bounds concurrency with a worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNilUnit   = errors.New("engine: unit is nil")
	ErrEmptyKey  = errors.New("engine: unit key is empty")
	ErrUnitPanic = errors.New("engine: unit panicked")
)

// UnitFunc is one schedulable unit of work.
type UnitFunc func(ctx context.Context) (any, error)

// Task is the future for a submitted unit.
type Task struct {
	done  chan struct{}
	value any
	err   error
}

// Wait blocks until the unit completes or the context is cancelled.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Engine schedules units. Results are memoized by key for the lifetime
// of the engine: submitting a key twice returns the first task.
type Engine struct {
	mu    sync.Mutex
	tasks map[string]*Task
	slots chan struct{}
}

// New creates an engine with the given worker bound. A bound of zero or
// less means unbounded.
func New(workers int) *Engine {
	e := &Engine{tasks: make(map[string]*Task)}
	if workers > 0 {
		e.slots = make(chan struct{}, workers)
	}
	return e
}

// Submit schedules fn under key and returns its task. If the key was
// already submitted the existing task is returned and fn is ignored.
func (e *Engine) Submit(ctx context.Context, key string, fn UnitFunc) (*Task, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if fn == nil {
		return nil, ErrNilUnit
	}

	e.mu.Lock()
	if task, ok := e.tasks[key]; ok {
		e.mu.Unlock()
		return task, nil
	}
	task := &Task{done: make(chan struct{})}
	e.tasks[key] = task
	e.mu.Unlock()

	go e.run(ctx, key, task, fn)
	return task, nil
}

func (e *Engine) run(ctx context.Context, key string, task *Task, fn UnitFunc) {
	defer close(task.done)

	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
			defer func() { <-e.slots }()
		case <-ctx.Done():
			task.err = ctx.Err()
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			task.err = fmt.Errorf("%w: %q: %v", ErrUnitPanic, key, r)
		}
	}()
	task.value, task.err = fn(ctx)
}
