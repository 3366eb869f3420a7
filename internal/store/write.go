package store

import (
	"context"
	"fmt"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// WriteRun inserts a run header.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, program, program_hash, drain_policy, speed, operation_count, completed, final_step, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Program,
		run.ProgramHash,
		run.DrainPolicy,
		run.Speed,
		run.OperationCount,
		run.Completed,
		run.FinalStep,
		run.EngineVersion,
		run.TraceVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, completed bool, finalStep int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET completed = ?, final_step = ? WHERE id = ?
	`, completed, finalStep, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// WriteSnapshot stores a snapshot as canonical JSON.
// The run header must exist (foreign key constraint).
// Duplicate (run_id, seq) pairs are silently ignored.
func (s *Store) WriteSnapshot(ctx context.Context, snap ir.Snapshot) error {
	state, err := marshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, seq, phase, step, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, snap.RunID, snap.Seq, string(snap.Phase), snap.Step, state)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// WriteLogEntry stores one completed label.
// Duplicate (run_id, position) pairs are silently ignored.
func (s *Store) WriteLogEntry(ctx context.Context, entry ir.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries (run_id, position, label, step)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, entry.RunID, entry.Position, entry.Label, entry.Step)
	if err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// marshalSnapshot converts a snapshot to canonical JSON TEXT for storage.
func marshalSnapshot(snap ir.Snapshot) (string, error) {
	data, err := ir.MarshalCanonical(snap.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
