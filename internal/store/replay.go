package store

import (
	"context"
	"fmt"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// RunState is everything stored about one run, with a summary for replay.
type RunState struct {
	Run       ir.RunRecord
	Snapshots []ir.Snapshot
	Log       []ir.LogEntry
	LastSeq   int64
	// Digest is ir.TraceDigest over Snapshots.
	Digest string
}

// Labels returns the log labels in order.
func (rs RunState) Labels() []string {
	out := make([]string, len(rs.Log))
	for i, e := range rs.Log {
		out[i] = e.Label
	}
	return out
}

// GetRunState reads a run, its snapshots and its log.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	snaps, err := s.ReadSnapshots(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	log, err := s.ReadLog(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	digest, err := ir.TraceDigest(snaps)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{Run: run, Snapshots: snaps, Log: log, Digest: digest}
	if len(snaps) > 0 {
		state.LastSeq = snaps[len(snaps)-1].Seq
	}
	return state, nil
}
