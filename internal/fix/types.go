package fix

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cczona/pants/internal/snapshot"
)

// Category classifies a tool's edits. Fixers make corrective changes and
// always run before formatters, whose edits are style-only.
type Category int

const (
	CategoryFixer Category = iota
	CategoryFormatter
)

func (c Category) String() string {
	switch c {
	case CategoryFixer:
		return "fixer"
	case CategoryFormatter:
		return "formatter"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Scope says whether a tool sees resolved targets or raw file paths.
type Scope int

const (
	ScopePerTarget Scope = iota
	ScopePerFile
)

func (s Scope) String() string {
	switch s {
	case ScopePerTarget:
		return "per-target"
	case ScopePerFile:
		return "per-file"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// FieldSet is one address-qualified unit from the target resolver: the
// target address plus its resolved source capability fields.
type FieldSet struct {
	Address string
	Source  string
	Sources []string
}

// Paths flattens the single-path and multi-path fields.
func (fs FieldSet) Paths() []string {
	var out []string
	if fs.Source != "" {
		out = append(out, fs.Source)
	}
	out = append(out, fs.Sources...)
	return out
}

// CandidateSet is the ordered collection of units a tool is eligible to
// see, supplied by the resolver. Immutable per run.
type CandidateSet struct {
	FieldSets []FieldSet
	Files     []string
}

// Empty reports whether the set carries no file-bearing units at all.
func (cs CandidateSet) Empty() bool {
	return len(cs.FieldSets) == 0 && len(cs.Files) == 0
}

// AllPaths returns every path reachable from the set, deduplicated and
// sorted ascending.
func (cs CandidateSet) AllPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, fs := range cs.FieldSets {
		for _, p := range fs.Paths() {
			add(p)
		}
	}
	for _, p := range cs.Files {
		add(p)
	}
	sort.Strings(out)
	return out
}

// Partition is one ordered, deduplicated group of file paths a tool
// processes together in one batch. Metadata is opaque to the core.
type Partition struct {
	Files    []string
	Metadata string
}

// PartitionFunc computes a tool's partitions from its full candidate
// set. The decision may depend on the whole set, not just per-element
// properties. An empty file list inside a returned partition is dropped
// by the planner.
type PartitionFunc func(cs CandidateSet) ([]Partition, error)

// BatchRequest is the input to one tool transformation: the partition's
// files and the current workspace content restricted to them.
type BatchRequest struct {
	ToolName string
	Files    []string
	Metadata string
	Snapshot *snapshot.Tree
}

// BatchOutput is what a transformation returns.
type BatchOutput struct {
	Snapshot *snapshot.Tree
	Stdout   string
	Stderr   string
}

// TransformFunc is the tool-supplied edit logic over one batch.
type TransformFunc func(ctx context.Context, req BatchRequest) (BatchOutput, error)

// Tool is the immutable registration descriptor for one fixer or
// formatter. A nil Partition opts into the default single-partition
// strategy.
type Tool struct {
	Name      string
	Category  Category
	Scope     Scope
	Skip      bool
	Requires  []string
	Partition PartitionFunc
	Transform TransformFunc
}

// Validate enforces descriptor fields required for registration.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if t.Name != strings.TrimSpace(t.Name) {
		return fmt.Errorf("%w: name %q has surrounding whitespace", ErrInvalidTool, t.Name)
	}
	if strings.ContainsAny(t.Name, "\n\t") {
		return fmt.Errorf("%w: name %q contains control characters", ErrInvalidTool, t.Name)
	}
	if t.Category != CategoryFixer && t.Category != CategoryFormatter {
		return fmt.Errorf("%w: unknown category %d", ErrInvalidTool, int(t.Category))
	}
	if t.Scope != ScopePerTarget && t.Scope != ScopePerFile {
		return fmt.Errorf("%w: unknown scope %d", ErrInvalidTool, int(t.Scope))
	}
	if t.Transform == nil {
		return fmt.Errorf("%w: transform is required", ErrInvalidTool)
	}
	return nil
}

// Options are the recognized run options.
type Options struct {
	// Only restricts the run to the named tools; empty means unrestricted.
	Only []string
	// SkipFormatters drops every formatter-category tool from the run.
	SkipFormatters bool
	// Workers bounds batch concurrency; zero or less means unbounded.
	Workers int
}

// Allows reports whether the only-list admits the named tool.
func (o Options) Allows(name string) bool {
	if len(o.Only) == 0 {
		return true
	}
	for _, n := range o.Only {
		if n == name {
			return true
		}
	}
	return false
}
