package fix

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/cczona/pants/internal/logging"
	"github.com/cczona/pants/internal/snapshot"
	"github.com/cczona/pants/internal/testutil/testlog"
)

// fakeResolver serves per-tool candidate sets from a fixed workspace
// view. Empty selectors resolve to nothing, like a run with no targets.
type fakeResolver struct {
	candidates map[string]CandidateSet
	tree       *snapshot.Tree
	err        error
}

func (f *fakeResolver) Resolve(_ context.Context, tool Tool, selectors []string) (CandidateSet, error) {
	if f.err != nil {
		return CandidateSet{}, f.err
	}
	if len(selectors) == 0 {
		return CandidateSet{}, nil
	}
	return f.candidates[tool.Name], nil
}

func (f *fakeResolver) Snapshot(_ context.Context, paths []string) (*snapshot.Tree, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tree.Restrict(paths), nil
}

func newTestRunner(t *testing.T, registry *Registry, resolver Resolver) *Runner {
	t.Helper()
	store, err := snapshot.NewStore(64)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewRunner(registry, resolver, store, logging.Logger())
}

const canonicalFortran = "READ INPUT TAPE 5\n"

// fortranWorkspace mirrors a small mixed-language workspace where one
// fortran file and the build manifest need fixing.
func fortranWorkspace() *snapshot.Tree {
	return tree(
		file("BUILD", "fortran(name='f1', source=\"ft1.f98\")\n"),
		file("ft1.f98", canonicalFortran),
		file("fixed.f98", "READ INPUT TAPE 5"),
		file("st1.st", "y := self size + super size.')"),
		file("fixed.st", "y := self size + super size.')\n"),
	)
}

func fortranCandidates() CandidateSet {
	return CandidateSet{FieldSets: []FieldSet{
		{Address: "//:f1", Source: "ft1.f98"},
		{Address: "//:needs_fixing", Source: "fixed.f98"},
	}}
}

func fortranFixTool() Tool {
	tool := testTool("FortranConditionallyDidChange", CategoryFixer)
	tool.Scope = ScopePerTarget
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		triggered := false
		for _, fs := range cs.FieldSets {
			if strings.HasSuffix(fs.Address, ":needs_fixing") {
				triggered = true
			}
		}
		if !triggered {
			return nil, nil
		}
		return []Partition{{Files: cs.AllPaths()}}, nil
	}
	tool.Transform = setContent(canonicalFortran)
	return tool
}

func fortranFmtTool() Tool {
	tool := testTool("FortranFormatter", CategoryFormatter)
	tool.Scope = ScopePerTarget
	tool.Transform = setContent(canonicalFortran)
	return tool
}

func smalltalkNoopTool() Tool {
	tool := testTool("SmalltalkDidNotChange", CategoryFixer)
	tool.Scope = ScopePerTarget
	return tool
}

func smalltalkSkipTool(t *testing.T) Tool {
	tool := testTool("SmalltalkSkipped", CategoryFixer)
	tool.Scope = ScopePerTarget
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		return nil, nil
	}
	tool.Transform = func(_ context.Context, req BatchRequest) (BatchOutput, error) {
		t.Errorf("tool with no partitions must never be invoked")
		return BatchOutput{Snapshot: req.Snapshot}, nil
	}
	return tool
}

var wordRe = regexp.MustCompile(`[a-zA-Z_]+`)

func brickyTool() Tool {
	tool := testTool("BrickyBobby", CategoryFixer)
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		var builds []string
		for _, f := range cs.Files {
			if f == "BUILD" || strings.HasSuffix(f, "/BUILD") {
				builds = append(builds, f)
			}
		}
		if len(builds) == 0 {
			return nil, nil
		}
		return []Partition{{Files: builds}}, nil
	}
	tool.Transform = func(_ context.Context, req BatchRequest) (BatchOutput, error) {
		var files []snapshot.File
		for _, f := range req.Snapshot.Files() {
			var out []string
			for _, line := range strings.SplitAfter(string(f.Content), "\n") {
				if !strings.HasPrefix(line, "#") {
					line = wordRe.ReplaceAllString(line, "brick")
				}
				out = append(out, line)
			}
			files = append(files, snapshot.File{Path: f.Path, Content: []byte(strings.Join(out, ""))})
		}
		return BatchOutput{Snapshot: snapshot.New(files...)}, nil
	}
	return tool
}

func fortranResolver() *fakeResolver {
	ws := fortranWorkspace()
	smalltalk := CandidateSet{FieldSets: []FieldSet{
		{Address: "//:s1", Source: "st1.st"},
		{Address: "//:s2", Source: "fixed.st"},
	}}
	return &fakeResolver{
		tree: ws,
		candidates: map[string]CandidateSet{
			"FortranConditionallyDidChange": fortranCandidates(),
			"FortranFormatter":              fortranCandidates(),
			"SmalltalkDidNotChange":         smalltalk,
			"SmalltalkSkipped":              smalltalk,
			"BrickyBobby":                   {Files: []string{"BUILD", "fixed.f98", "fixed.st", "ft1.f98", "st1.st"}},
		},
	}
}

func TestRunSummary(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	for _, tool := range []Tool{fortranFixTool(), fortranFmtTool(), smalltalkSkipTool(t), smalltalkNoopTool(), brickyTool()} {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name, err)
		}
	}

	runner := newTestRunner(t, registry, fortranResolver())
	result, err := runner.Run(context.Background(), []string{"::"}, Options{Workers: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.OK {
		t.Fatalf("failures: %v", result.Failures)
	}

	want := []string{
		"+ BrickyBobby made changes.",
		"+ FortranConditionallyDidChange made changes.",
		"✓ FortranFormatter made no changes.",
		"✓ SmalltalkDidNotChange made no changes.",
	}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("report lines:\n%s\nwant:\n%s", strings.Join(result.Lines, "\n"), strings.Join(want, "\n"))
	}

	fixed, _ := result.Tree.Content("fixed.f98")
	if string(fixed) != canonicalFortran {
		t.Fatalf("fixed.f98 not normalized: %q", fixed)
	}
	build, _ := result.Tree.Content("BUILD")
	if string(build) != "brick(brick='brick1', brick=\"brick1.brick98\")\n" {
		t.Fatalf("BUILD not brickified: %q", build)
	}
}

func TestRunFixersBeforeFormatters(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	// Formatter registered first; the fixer must still run first, making
	// the formatter a no-op.
	if err := registry.Register(fortranFmtTool()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(fortranFixTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	runner := newTestRunner(t, registry, fortranResolver())
	result, err := runner.Run(context.Background(), []string{"::"}, Options{Workers: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{
		"+ FortranConditionallyDidChange made changes.",
		"✓ FortranFormatter made no changes.",
	}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("report lines: %v", result.Lines)
	}
}

func TestRunOnlyFilter(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	for _, tool := range []Tool{fortranFixTool(), smalltalkSkipTool(t), smalltalkNoopTool(), brickyTool()} {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name, err)
		}
	}

	runner := newTestRunner(t, registry, fortranResolver())
	result, err := runner.Run(context.Background(), []string{"::"}, Options{
		Only:    []string{"SmalltalkDidNotChange"},
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"✓ SmalltalkDidNotChange made no changes."}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("report lines: %v", result.Lines)
	}
}

func TestRunNoSelectors(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	for _, tool := range []Tool{fortranFixTool(), smalltalkSkipTool(t), smalltalkNoopTool(), brickyTool()} {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name, err)
		}
	}

	runner := newTestRunner(t, registry, fortranResolver())
	result, err := runner.Run(context.Background(), nil, Options{Workers: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("no selectors must produce an empty report: %v", result.Lines)
	}
	if result.Tree.Len() != 0 {
		t.Fatalf("no selectors must touch nothing: %v", result.Tree.Paths())
	}
}

func TestRunSkipFormatters(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	if err := registry.Register(fortranFmtTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	runner := newTestRunner(t, registry, fortranResolver())
	result, err := runner.Run(context.Background(), []string{"::"}, Options{SkipFormatters: true, Workers: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("skip-formatters must silence the only formatter: %v", result.Lines)
	}
}

func TestRunResolutionFailureIsFatal(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	if err := registry.Register(fortranFixTool()); err != nil {
		t.Fatalf("register: %v", err)
	}
	resolver := &fakeResolver{err: errors.New("target graph corrupt")}

	runner := newTestRunner(t, registry, resolver)
	_, err := runner.Run(context.Background(), []string{"::"}, Options{Workers: 4})
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestRunPlanningFailureIsolated(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	broken := testTool("broken-planner", CategoryFixer)
	broken.Partition = func(cs CandidateSet) ([]Partition, error) {
		return nil, errors.New("strategy raised")
	}
	if err := registry.Register(broken); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(fortranFixTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolver := fortranResolver()
	resolver.candidates["broken-planner"] = CandidateSet{Files: []string{"ft1.f98"}}

	runner := newTestRunner(t, registry, resolver)
	result, err := runner.Run(context.Background(), []string{"::"}, Options{Workers: 4})
	if err != nil {
		t.Fatalf("planning failure must not abort the run: %v", err)
	}
	if result.OK {
		t.Fatalf("run with a failed planner must not be OK")
	}
	if !errors.Is(result.Failures["broken-planner"], ErrPlanning) {
		t.Fatalf("expected ErrPlanning, got %v", result.Failures["broken-planner"])
	}
	// The broken tool never executed, so it has no report line.
	want := []string{"+ FortranConditionallyDidChange made changes."}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("report lines: %v", result.Lines)
	}
}

func TestRunExecutionFailureReportsDistinctly(t *testing.T) {
	testlog.Start(t)
	registry := NewRegistry()
	crashing := testTool("CrashingTool", CategoryFixer)
	crashing.Transform = func(_ context.Context, req BatchRequest) (BatchOutput, error) {
		return BatchOutput{}, errors.New("segfault")
	}
	if err := registry.Register(crashing); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(fortranFixTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolver := fortranResolver()
	resolver.candidates["CrashingTool"] = CandidateSet{Files: []string{"st1.st"}}

	runner := newTestRunner(t, registry, resolver)
	result, err := runner.Run(context.Background(), []string{"::"}, Options{Workers: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.OK {
		t.Fatalf("run with an execution failure must not be OK")
	}
	want := []string{
		"✗ CrashingTool failed.",
		"+ FortranConditionallyDidChange made changes.",
	}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("report lines: %v", result.Lines)
	}
}
