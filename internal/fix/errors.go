package fix

import "errors"

var (
	ErrInvalidTool = errors.New("fix: invalid tool descriptor")
	ErrToolExists  = errors.New("fix: tool already registered")

	// ErrPlanning marks a partition strategy failure; it isolates to the
	// one tool and excludes it from the rest of the run.
	ErrPlanning = errors.New("fix: partition planning failed")
	// ErrExecution marks a batch transformation failure; the tool's
	// remaining partitions are abandoned but sibling tools continue.
	ErrExecution = errors.New("fix: batch execution failed")
	// ErrResolution marks a candidate resolution failure; it is fatal to
	// the whole run.
	ErrResolution = errors.New("fix: candidate resolution failed")
)
