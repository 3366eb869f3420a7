package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/extract"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// Recorder is an engine.Observer that persists every run it sees.
//
// Observer callbacks cannot return errors, so write failures are logged and
// collected; Err returns them joined.
type Recorder struct {
	store  *Store
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	logged map[string]int // run id -> log entries written
	errs   []error
}

// NewRecorder creates a recorder writing to s. ctx bounds every write.
func NewRecorder(ctx context.Context, s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		ctx:    ctx,
		logger: logger,
		logged: make(map[string]int),
	}
}

// OnRunStart writes the run header.
func (r *Recorder) OnRunStart(info engine.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.WriteRun(r.ctx, ir.RunRecord{
		ID:             info.RunID,
		Program:        info.Program,
		ProgramHash:    info.ProgramHash,
		DrainPolicy:    string(info.Policy),
		Speed:          info.Speed,
		OperationCount: extract.Summary(info.Operations).Total(),
		EngineVersion:  ir.EngineVersion,
		TraceVersion:   ir.TraceVersion,
	})
	if r.fail(err, "run_id", info.RunID) {
		return
	}
	r.logged[info.RunID] = 0
}

// OnSnapshot writes the snapshot and any labels appended since the last one.
// Snapshots of runs that were not started through this recorder (including
// reset snapshots, which carry no run id) are skipped.
func (r *Recorder) OnSnapshot(snap ir.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written, ok := r.logged[snap.RunID]
	if !ok {
		return
	}
	if r.fail(r.store.WriteSnapshot(r.ctx, snap), "run_id", snap.RunID, "seq", snap.Seq) {
		return
	}
	for pos := written; pos < len(snap.Log); pos++ {
		entry := ir.LogEntry{RunID: snap.RunID, Position: pos, Label: snap.Log[pos], Step: snap.Step}
		if r.fail(r.store.WriteLogEntry(r.ctx, entry), "run_id", snap.RunID, "position", pos) {
			return
		}
		r.logged[snap.RunID] = pos + 1
	}
}

// OnRunEnd records the outcome and forgets the run.
func (r *Recorder) OnRunEnd(res engine.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logged[res.RunID]; !ok {
		return
	}
	delete(r.logged, res.RunID)
	r.fail(r.store.FinishRun(r.ctx, res.RunID, res.Completed, res.Steps), "run_id", res.RunID)
}

// Err returns every write error seen so far, joined.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

// fail logs and keeps err. Caller must hold r.mu.
func (r *Recorder) fail(err error, attrs ...any) bool {
	if err == nil {
		return false
	}
	r.logger.Error("trace write failed", append([]any{"error", err}, attrs...)...)
	r.errs = append(r.errs, err)
	return true
}
