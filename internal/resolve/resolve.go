// Package resolve turns user selectors plus a tool's declared
// capability requirements into the candidate set the tool is eligible
// to see. Targets are declared in fixtargets.toml manifests; per-file
// tools bypass targets and match raw workspace paths.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/cczona/pants/internal/fix"
	"github.com/cczona/pants/internal/snapshot"
	"github.com/cczona/pants/internal/workspace"
)

const ManifestName = "fixtargets.toml"

var (
	ErrInvalidTarget   = errors.New("resolve: invalid target")
	ErrInvalidSelector = errors.New("resolve: invalid selector")
)

// Target is one named, address-qualified group of sources from a
// manifest. Source is a single path, Sources holds glob patterns; both
// are relative to the manifest's directory.
type Target struct {
	Name    string
	Dir     string
	Source  string
	Sources []string
}

// Address returns the stable target address used in field sets.
func (t Target) Address() string {
	return "//" + t.Dir + ":" + t.Name
}

type manifestTarget struct {
	Name    string   `toml:"name"`
	Source  string   `toml:"source"`
	Sources []string `toml:"sources"`
}

type manifest struct {
	Targets []manifestTarget `toml:"target"`
}

// Workspace is the resolved view of one workspace root: every file and
// every declared target. It implements fix.Resolver.
type Workspace struct {
	root    *workspace.Root
	files   []string
	targets []Target
}

// Load scans the root and parses every manifest under it.
func Load(root *workspace.Root) (*Workspace, error) {
	files, err := root.Walk()
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, f := range files {
		if path.Base(f) != ManifestName {
			continue
		}
		data, err := root.ReadFile(f)
		if err != nil {
			return nil, err
		}
		var m manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("resolve: manifest %s: %w", f, err)
		}
		dir := path.Dir(f)
		if dir == "." {
			dir = ""
		}
		for _, mt := range m.Targets {
			if strings.TrimSpace(mt.Name) == "" {
				return nil, fmt.Errorf("%w: manifest %s: target name is required", ErrInvalidTarget, f)
			}
			targets = append(targets, Target{
				Name:    mt.Name,
				Dir:     dir,
				Source:  mt.Source,
				Sources: mt.Sources,
			})
		}
	}
	return &Workspace{root: root, files: files, targets: targets}, nil
}

// Root returns the underlying filesystem boundary.
func (w *Workspace) Root() *workspace.Root {
	return w.root
}

// Targets returns every declared target in manifest order.
func (w *Workspace) Targets() []Target {
	out := make([]Target, len(w.targets))
	copy(out, w.targets)
	return out
}

// Select evaluates selectors against the workspace file list. Supported
// forms: "::" (everything), "dir::" (that subtree), a glob pattern, or
// a literal path. An empty selector list selects nothing.
func (w *Workspace) Select(selectors []string) ([]string, error) {
	selected := make(map[string]struct{})
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
		}
		switch {
		case sel == "::":
			for _, f := range w.files {
				selected[f] = struct{}{}
			}
		case strings.HasSuffix(sel, "::"):
			prefix := strings.TrimSuffix(sel, "::")
			prefix = strings.TrimSuffix(prefix, "/")
			for _, f := range w.files {
				if f == prefix || strings.HasPrefix(f, prefix+"/") {
					selected[f] = struct{}{}
				}
			}
		default:
			if !doublestar.ValidatePattern(sel) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidSelector, sel)
			}
			for _, f := range w.files {
				ok, err := doublestar.Match(sel, f)
				if err != nil {
					return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, sel, err)
				}
				if ok {
					selected[f] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(selected))
	for f := range selected {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve builds the candidate set one tool is eligible to see.
func (w *Workspace) Resolve(_ context.Context, tool fix.Tool, selectors []string) (fix.CandidateSet, error) {
	selected, err := w.Select(selectors)
	if err != nil {
		return fix.CandidateSet{}, err
	}
	inSelection := make(map[string]struct{}, len(selected))
	for _, f := range selected {
		inSelection[f] = struct{}{}
	}

	if tool.Scope == fix.ScopePerFile {
		var files []string
		for _, f := range selected {
			ok, err := matchesRequires(tool.Requires, f)
			if err != nil {
				return fix.CandidateSet{}, err
			}
			if ok {
				files = append(files, f)
			}
		}
		return fix.CandidateSet{Files: files}, nil
	}

	var fieldSets []fix.FieldSet
	for _, target := range w.targets {
		fs, ok, err := w.fieldSet(target, tool.Requires, inSelection)
		if err != nil {
			return fix.CandidateSet{}, err
		}
		if ok {
			fieldSets = append(fieldSets, fs)
		}
	}
	return fix.CandidateSet{FieldSets: fieldSets}, nil
}

// fieldSet resolves one target's capability fields against the
// selection and the tool's requirements.
func (w *Workspace) fieldSet(target Target, requires []string, inSelection map[string]struct{}) (fix.FieldSet, bool, error) {
	fs := fix.FieldSet{Address: target.Address()}

	if target.Source != "" {
		p := joinRel(target.Dir, target.Source)
		if _, ok := inSelection[p]; ok {
			match, err := matchesRequires(requires, p)
			if err != nil {
				return fix.FieldSet{}, false, err
			}
			if match {
				fs.Source = p
			}
		}
	}

	for _, pattern := range target.Sources {
		full := joinRel(target.Dir, pattern)
		if !doublestar.ValidatePattern(full) {
			return fix.FieldSet{}, false, fmt.Errorf("%w: %s: bad sources pattern %q", ErrInvalidTarget, target.Address(), pattern)
		}
		for _, f := range w.files {
			if _, ok := inSelection[f]; !ok {
				continue
			}
			hit, err := doublestar.Match(full, f)
			if err != nil {
				return fix.FieldSet{}, false, err
			}
			if !hit {
				continue
			}
			match, err := matchesRequires(requires, f)
			if err != nil {
				return fix.FieldSet{}, false, err
			}
			if match {
				fs.Sources = append(fs.Sources, f)
			}
		}
	}

	return fs, fs.Source != "" || len(fs.Sources) > 0, nil
}

// Snapshot reads the given paths into a content-addressed tree.
func (w *Workspace) Snapshot(_ context.Context, paths []string) (*snapshot.Tree, error) {
	return w.root.Snapshot(paths)
}

func matchesRequires(requires []string, file string) (bool, error) {
	if len(requires) == 0 {
		return true, nil
	}
	for _, pattern := range requires {
		ok, err := doublestar.Match(pattern, file)
		if err != nil {
			return false, fmt.Errorf("%w: bad requires pattern %q: %v", ErrInvalidSelector, pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func joinRel(dir, p string) string {
	if dir == "" {
		return p
	}
	return dir + "/" + p
}
