package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// FormatTrace renders a snapshot trace one line per snapshot:
//
//	<seq> <phase> step=<n> backlog=<n> running=<bool> stack=[...] pending=[...] cq=[...] tq=[...] log=[...]
//
// Items render as `<id> <kind> "<name>"`, with ` delay=<d>` for non-zero
// delays. The format is stable: golden files depend on it byte for byte.
func FormatTrace(trace []ir.Snapshot) []byte {
	var buf bytes.Buffer
	for _, s := range trace {
		fmt.Fprintf(&buf, "%02d %s step=%d backlog=%d running=%t stack=%s pending=%s cq=%s tq=%s log=%s\n",
			s.Seq, s.Phase, s.Step, s.Backlog, s.Running,
			formatItems(s.CallStack),
			formatItems(s.Pending),
			formatItems(s.ContinuationQueue),
			formatItems(s.CallbackQueue),
			formatLog(s.Log),
		)
	}
	return buf.Bytes()
}

func formatItems(items []ir.ScheduledItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%d %s %q", it.ID, it.Kind, it.Name)
		if it.Delay > 0 {
			parts[i] += " delay=" + it.Delay.String()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatLog(log []string) string {
	parts := make([]string, len(log))
	for i, l := range log {
		parts[i] = fmt.Sprintf("%q", l)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(result.Trace))
}
