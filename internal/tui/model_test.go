package tui

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/testutil"
)

const program = `console.log("Start");
setTimeout(() => {}, 250);
Promise.resolve().then(() => {});
console.log("End");
`

// fakeController records control calls.
type fakeController struct {
	runs   []string
	resets int
	paused bool
	speeds []float64
	snap   ir.Snapshot
}

func (f *fakeController) Run(p string) <-chan struct{} {
	f.runs = append(f.runs, p)
	f.snap = ir.Snapshot{RunID: "fake", Phase: ir.PhaseStart, Running: true, Backlog: 4}
	done := make(chan struct{})
	close(done)
	return done
}

func (f *fakeController) Reset() {
	f.resets++
	f.paused = false
	f.snap = ir.Snapshot{Phase: ir.PhaseReset}
}

func (f *fakeController) TogglePause() bool {
	f.paused = !f.paused
	f.snap.Paused = f.paused
	return f.paused
}

func (f *fakeController) SetSpeed(s float64) error {
	f.speeds = append(f.speeds, s)
	return nil
}

func (f *fakeController) Snapshot() ir.Snapshot { return f.snap.Clone() }

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_InitAppliesSpeed(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program, WithSpeed(2))

	cmd := m.Init()
	require.NotNil(t, cmd)
	assert.Equal(t, []float64{2}, ctl.speeds)
	assert.Empty(t, ctl.runs)

	msg := cmd()
	_, ok := msg.(snapshotMsg)
	assert.True(t, ok, "Init should fetch a snapshot, got %T", msg)
}

func TestModel_AutoRun(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program, WithAutoRun())
	m.Init()
	assert.Equal(t, []string{program}, ctl.runs)
}

func TestModel_RunKey(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program)

	_, cmd := m.Update(keyMsg("r"))
	assert.Nil(t, cmd)
	assert.Equal(t, []string{program}, ctl.runs)
	assert.True(t, m.snap.Running)
	assert.Equal(t, "running", m.status)

	m.Update(keyMsg("enter"))
	assert.Len(t, ctl.runs, 2)
}

func TestModel_PauseKey(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program)

	m.Update(keyMsg("p"))
	assert.True(t, ctl.paused)
	assert.True(t, m.snap.Paused)
	assert.Equal(t, "paused", m.status)

	m.Update(keyMsg("p"))
	assert.False(t, ctl.paused)
	assert.Equal(t, "running", m.status)
}

func TestModel_ResetKey(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program)
	m.Update(keyMsg("r"))

	m.Update(keyMsg("x"))
	assert.Equal(t, 1, ctl.resets)
	assert.Equal(t, ir.PhaseReset, m.snap.Phase)
	assert.Equal(t, "reset", m.status)
}

func TestModel_SpeedKeys(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program)
	require.Equal(t, 1.0, m.speed())

	m.Update(keyMsg("+"))
	m.Update(keyMsg("="))
	m.Update(keyMsg("+")) // already at the fastest level
	assert.Equal(t, 4.0, m.speed())
	assert.Equal(t, []float64{2, 4}, ctl.speeds)

	for i := 0; i < 10; i++ {
		m.Update(keyMsg("-"))
	}
	assert.Equal(t, 0.25, m.speed())
	assert.Equal(t, []float64{2, 4, 2, 1, 0.5, 0.25}, ctl.speeds)
}

func TestModel_QuitResetsEngine(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			ctl := &fakeController{}
			m := New(ctl, program)

			_, cmd := m.Update(keyMsg(k))
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
			assert.Equal(t, 1, ctl.resets)
		})
	}
}

func TestModel_UnknownKeyIgnored(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program)

	_, cmd := m.Update(keyMsg("z"))
	assert.Nil(t, cmd)
	assert.Empty(t, ctl.runs)
	assert.Zero(t, ctl.resets)
}

func TestModel_SnapshotMsgSchedulesRefresh(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program, WithRefreshInterval(time.Millisecond))

	finished := ir.Snapshot{Phase: ir.PhaseFinish, Step: 4, Log: []string{"Start", "End"}}
	_, cmd := m.Update(snapshotMsg{snap: finished})
	require.NotNil(t, cmd)
	assert.Equal(t, "finished", m.status)
	assert.Equal(t, 4, m.snap.Step)
}

func TestModel_WindowSize(t *testing.T) {
	m := New(&fakeController{}, program)
	m.Update(tea.WindowSizeMsg{Width: 150, Height: 40})
	assert.Equal(t, 150, m.width)
	assert.Equal(t, 40, m.height)
}

func TestWithSpeed_KeepsConfiguredFactor(t *testing.T) {
	for _, factor := range []float64{0.1, 0.5, 1.5, 3, 100} {
		ctl := &fakeController{}
		m := New(ctl, program, WithSpeed(factor))
		m.Init()
		assert.Equal(t, factor, m.speed())
		assert.Equal(t, []float64{factor}, ctl.speeds, "engine keeps factor %v", factor)
	}
}

func TestWithSpeed_IgnoresInvalid(t *testing.T) {
	for _, factor := range []float64{0, -2, math.Inf(1), math.NaN()} {
		m := New(&fakeController{}, program, WithSpeed(factor))
		assert.Equal(t, 1.0, m.speed(), "factor %v", factor)
	}
}

func TestModel_SpeedKeysFromBetweenLevels(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl, program, WithSpeed(3))

	m.Update(keyMsg("+"))
	assert.Equal(t, 4.0, m.speed())

	m = New(ctl, program, WithSpeed(3))
	m.Update(keyMsg("-"))
	assert.Equal(t, 2.0, m.speed())

	m = New(ctl, program, WithSpeed(100))
	m.Update(keyMsg("+"))
	assert.Equal(t, 100.0, m.speed(), "nothing faster than the factor")
	m.Update(keyMsg("-"))
	assert.Equal(t, 4.0, m.speed())
}

func TestModel_DrivesRealEngine(t *testing.T) {
	eng := engine.New(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithSleeper(testutil.InstantSleeper{}),
		engine.WithRunIDGenerator(testutil.NewFixedRunID("tui-run")),
	)
	m := New(eng, program)
	m.Init()

	m.Update(keyMsg("r"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Wait(ctx))

	m.Update(snapshotMsg{snap: eng.Snapshot()})
	assert.Equal(t, []string{"Start", "End", ir.LabelContinuation, ir.LabelDeferred}, m.snap.Log)
	assert.Equal(t, "finished", m.status)
	assert.Contains(t, m.View(), "run tui-run")
}
