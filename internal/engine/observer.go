package engine

import "github.com/asitkr/event-loop-visualizer/internal/ir"

// RunInfo describes a run at the moment it starts.
type RunInfo struct {
	RunID       string
	Epoch       uint64
	Program     string
	ProgramHash string
	Operations  []ir.Operation
	Policy      DrainPolicy
	Speed       float64
}

// RunResult describes a run when its phase loop exits.
type RunResult struct {
	RunID string
	Epoch uint64
	// Completed is false when the run was cancelled by Reset or a new Run.
	Completed bool
	Log       []string
	Steps     int
}

// Observer receives the snapshot stream.
//
// Only phase transitions publish snapshots. Pausing and resuming change no
// structure and publish nothing; a snapshot's Paused field is the gate at the
// moment that transition happened. Pollers see the current gate through
// Engine.Snapshot.
//
// Callbacks are invoked without the engine lock held, one at a time, in
// transition order. They must not call back into the engine: use the
// snapshot they are given.
type Observer interface {
	OnRunStart(info RunInfo)
	OnSnapshot(s ir.Snapshot)
	OnRunEnd(result RunResult)
}

// NoopObserver ignores every callback. Embed it to implement a subset.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(RunInfo) {}
func (NoopObserver) OnSnapshot(ir.Snapshot) {}
func (NoopObserver) OnRunEnd(RunResult) {}

// SnapshotFunc adapts a function to an Observer that only sees snapshots.
type SnapshotFunc func(ir.Snapshot)

func (f SnapshotFunc) OnRunStart(RunInfo) {}
func (f SnapshotFunc) OnSnapshot(s ir.Snapshot) { f(s) }
func (f SnapshotFunc) OnRunEnd(RunResult) {}
