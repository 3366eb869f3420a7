package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

func TestRunWithGolden_CanonicalOrder(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "canonical_order.yaml"))
	require.NoError(t, err)

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_EveryTurnPacing(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "every_turn_pacing.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestFormatTrace(t *testing.T) {
	trace := []ir.Snapshot{
		{
			Seq:   3,
			Phase: ir.PhaseStage,
			Step:  2,
			Pending: []ir.ScheduledItem{
				{ID: 7, Name: ir.LabelDeferred, Kind: ir.KindPendingTimer, Delay: 250 * time.Millisecond},
			},
			ContinuationQueue: []ir.ScheduledItem{
				{ID: 5, Name: ir.LabelContinuation, Kind: ir.KindContinuation},
			},
			Log:     []string{`say "hi"`},
			Running: true,
		},
	}

	want := `03 stage step=2 backlog=0 running=true stack=[] pending=[7 pending-timer "setTimeout callback" delay=250ms] cq=[5 continuation "Promise.then callback"] tq=[] log=["say \"hi\""]` + "\n"
	assert.Equal(t, want, string(FormatTrace(trace)))
}

func TestFormatTrace_Empty(t *testing.T) {
	assert.Empty(t, FormatTrace(nil))
}
