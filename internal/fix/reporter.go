package fix

import (
	"sort"

	"github.com/rs/zerolog"
)

// ToolOutcome is one tool's folded result across all of its batches.
type ToolOutcome struct {
	ToolName string
	Changed  bool
	Failed   bool
	Added    []string
	Removed  []string
}

// Message renders the outcome's summary body.
func (o ToolOutcome) Message() string {
	return formatMessage(o.ToolName, o.Changed, o.Failed, o.Added, o.Removed)
}

// Marker is the status prefix for the report line.
func (o ToolOutcome) Marker() string {
	switch {
	case o.Failed:
		return "✗"
	case o.Changed:
		return "+"
	default:
		return "✓"
	}
}

// Level maps outcome to log severity: ERROR failed, WARN changed, INFO
// unchanged.
func (o ToolOutcome) Level() zerolog.Level {
	switch {
	case o.Failed:
		return zerolog.ErrorLevel
	case o.Changed:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Line is the full report line: marker, space, message.
func (o ToolOutcome) Line() string {
	return o.Marker() + " " + o.Message()
}

// Fold aggregates batch results per tool: changed is an OR across the
// tool's batches, added/removed are sorted unions. Tools present only in
// the failure map (no surviving results) still fold into a failed
// outcome. Outcomes are returned sorted ascending by tool name, the
// report's sole ordering rule.
func Fold(results []BatchResult, failures map[string]error) []ToolOutcome {
	byName := make(map[string]*ToolOutcome)
	ensure := func(name string) *ToolOutcome {
		if o, ok := byName[name]; ok {
			return o
		}
		o := &ToolOutcome{ToolName: name}
		byName[name] = o
		return o
	}

	for _, r := range results {
		o := ensure(r.ToolName)
		if r.Changed() {
			o.Changed = true
		}
		o.Added = append(o.Added, r.AddedPaths()...)
		o.Removed = append(o.Removed, r.RemovedPaths()...)
	}
	for name := range failures {
		ensure(name).Failed = true
	}

	outcomes := make([]ToolOutcome, 0, len(byName))
	for _, o := range byName {
		o.Added = sortedCopy(dedupe(o.Added))
		o.Removed = sortedCopy(dedupe(o.Removed))
		outcomes = append(outcomes, *o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].ToolName < outcomes[j].ToolName
	})
	return outcomes
}

// Reporter logs per-tool outcomes and raw tool output.
type Reporter struct {
	log zerolog.Logger
}

func NewReporter(log zerolog.Logger) *Reporter {
	return &Reporter{log: log}
}

// Report logs every result's raw output at debug severity, then each
// outcome's line at its own severity, and returns the lines in order.
func (r *Reporter) Report(outcomes []ToolOutcome, results []BatchResult) []string {
	for _, res := range results {
		r.log.Debug().Msg(res.DebugOutput())
	}

	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		r.log.WithLevel(o.Level()).Msg(o.Line())
		lines = append(lines, o.Line())
	}
	return lines
}
