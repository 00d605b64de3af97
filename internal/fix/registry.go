package fix

import (
	"fmt"
	"sort"
)

// Registry holds the static set of tool descriptors, resolved once at
// process start. Registration order is preserved because it decides the
// relative order of same-category tools whose partitions overlap.
type Registry struct {
	items map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Tool)}
}

// Register adds a descriptor. Names are unique.
func (r *Registry) Register(tool Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}
	if _, ok := r.items[tool.Name]; ok {
		return fmt.Errorf("%w: %q", ErrToolExists, tool.Name)
	}
	r.items[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Resolve returns a descriptor by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	tool, ok := r.items[name]
	return tool, ok
}

// Names returns every registered tool name, sorted ascending.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveTools applies the run options and returns, in registration
// order, the descriptors that will participate in this run. A tool that
// fails the filter never plans and never executes.
func (r *Registry) ActiveTools(opts Options) []Tool {
	var active []Tool
	for _, name := range r.order {
		tool := r.items[name]
		if !opts.Allows(tool.Name) {
			continue
		}
		if opts.SkipFormatters && tool.Category == CategoryFormatter {
			continue
		}
		if tool.Skip {
			continue
		}
		active = append(active, tool)
	}
	return active
}
