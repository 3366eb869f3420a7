// Package tui renders the engine's state in the terminal and maps keys onto
// its control API.
//
// It uses bubbletea, which follows The Elm Architecture: the Model polls an
// engine snapshot on a tick, Update turns key presses into Run, Reset,
// TogglePause and SetSpeed calls, and View draws the latest snapshot.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/extract"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// DefaultRefreshInterval is how often the model polls the engine.
const DefaultRefreshInterval = 50 * time.Millisecond

// speedLevels are the factors +/- step through.
var speedLevels = []float64{0.25, 0.5, 1, 2, 4}

// Controller is the part of *engine.Engine the renderer drives.
type Controller interface {
	Run(program string) <-chan struct{}
	Reset()
	TogglePause() bool
	SetSpeed(factor float64) error
	Snapshot() ir.Snapshot
}

// snapshotMsg carries a polled snapshot into Update.
type snapshotMsg struct {
	snap ir.Snapshot
}

// Option customizes Model construction.
type Option func(*Model)

// WithRefreshInterval overrides the polling interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// WithSpeed sets the initial factor. It is kept as given, even between
// levels, until the user steps the speed. Invalid factors are ignored.
func WithSpeed(factor float64) Option {
	return func(m *Model) {
		if engine.ValidSpeed(factor) {
			m.factor = factor
		}
	}
}

// WithAutoRun starts a run as soon as the program starts.
func WithAutoRun() Option {
	return func(m *Model) {
		m.autoRun = true
	}
}

// Model is the bubbletea model for the watch view.
type Model struct {
	ctl     Controller
	program string
	ops     []ir.Operation

	snap     ir.Snapshot
	factor   float64
	refresh  time.Duration
	autoRun  bool

	keys   keyMap
	help   help.Model
	status string
	err    error

	width  int
	height int
}

// New creates a Model driving ctl with program.
func New(ctl Controller, program string, opts ...Option) *Model {
	m := &Model{
		ctl:      ctl,
		program:  program,
		ops:      extract.Extract(program),
		factor:   1,
		refresh:  DefaultRefreshInterval,
		keys:     defaultKeyMap(),
		help:     help.New(),
		status:   "press r to run",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.snap = ctl.Snapshot()
	return m
}

// Init applies the initial speed and starts polling.
func (m *Model) Init() tea.Cmd {
	if err := m.ctl.SetSpeed(m.speed()); err != nil {
		m.err = err
	}
	if m.autoRun {
		m.run()
	}
	return m.fetchSnapshot()
}

// Update is called when a message is received.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		if !m.snap.Running && m.snap.Phase == ir.PhaseFinish {
			m.status = "finished"
		}
		return m, m.scheduleRefresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.ctl.Reset()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Run):
			m.run()
		case key.Matches(msg, m.keys.Pause):
			if m.ctl.TogglePause() {
				m.status = "paused"
			} else {
				m.status = "running"
			}
		case key.Matches(msg, m.keys.Reset):
			m.ctl.Reset()
			m.status = "reset"
		case key.Matches(msg, m.keys.SpeedUp):
			m.shiftSpeed(1)
		case key.Matches(msg, m.keys.SpeedDown):
			m.shiftSpeed(-1)
		default:
			return m, nil
		}
		m.snap = m.ctl.Snapshot()
		return m, nil
	}

	return m, nil
}

func (m *Model) run() {
	m.ctl.Run(m.program)
	m.status = "running"
}

func (m *Model) speed() float64 {
	return m.factor
}

// shiftSpeed moves to the next level above (delta > 0) or below the current
// factor. It does nothing past the fastest or slowest level.
func (m *Model) shiftSpeed(delta int) {
	next, ok := 0.0, false
	for _, s := range speedLevels {
		if delta > 0 && s > m.factor {
			next, ok = s, true
			break
		}
		if delta < 0 && s < m.factor {
			next, ok = s, true
		}
	}
	if !ok {
		return
	}
	if err := m.ctl.SetSpeed(next); err != nil {
		m.err = err
		return
	}
	m.factor = next
	m.status = fmt.Sprintf("speed %gx", m.factor)
}

func (m *Model) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: m.ctl.Snapshot()}
	}
}

func (m *Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return snapshotMsg{snap: m.ctl.Snapshot()}
	})
}
