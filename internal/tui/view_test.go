package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

func TestView_Panels(t *testing.T) {
	ctl := &fakeController{snap: ir.Snapshot{
		RunID:   "run-1",
		Phase:   ir.PhaseReady,
		Step:    2,
		Running: true,
		Pending: []ir.ScheduledItem{
			{ID: 2, Name: ir.LabelDeferred, Kind: ir.KindPendingTimer, Delay: 250 * time.Millisecond},
		},
		ContinuationQueue: []ir.ScheduledItem{
			{ID: 3, Name: ir.LabelContinuation, Kind: ir.KindContinuation},
		},
		Log: []string{"Start"},
	}}
	m := New(ctl, program)

	out := m.View()
	for _, want := range []string{
		"EVENT LOOP",
		"PROGRAM",
		"CALL STACK",
		"PENDING",
		"CONTINUATION QUEUE",
		"CALLBACK QUEUE",
		"LOG",
		"#2 setTimeout callback (250ms)",
		"#3 Promise.then callback",
		"1. Start",
		"running · step 2/4 · phase ready · speed 1x · run run-1",
	} {
		assert.Contains(t, out, want)
	}
}

func TestView_Idle(t *testing.T) {
	m := New(&fakeController{}, "")
	out := m.View()

	assert.Contains(t, out, "idle · step 0/0")
	assert.Contains(t, out, "no operations recognized")
	assert.Contains(t, out, "(empty)")
	assert.Contains(t, out, "press r to run")
}

func TestView_PausedState(t *testing.T) {
	ctl := &fakeController{snap: ir.Snapshot{Running: true, Paused: true, Phase: ir.PhaseStage}}
	m := New(ctl, program)
	assert.Contains(t, m.View(), "paused · step 0/4")
}

func TestRenderItem_DelayOnlyWhilePending(t *testing.T) {
	pending := renderItem(ir.ScheduledItem{ID: 1, Name: "t", Kind: ir.KindPendingTimer, Delay: time.Second})
	queued := renderItem(ir.ScheduledItem{ID: 1, Name: "t", Kind: ir.KindTimer, Delay: time.Second})

	assert.Contains(t, pending, "(1s)")
	assert.NotContains(t, queued, "(1s)")
}
