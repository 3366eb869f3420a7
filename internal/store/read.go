package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

const runColumns = `id, program, program_hash, drain_policy, speed, operation_count, completed, final_step, engine_version, trace_version`

// ReadRun returns the header of a run.
// Returns an error wrapping ErrNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns every run header, ordered by id.
// Run ids are UUIDv7 in production, so this is creation order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSnapshots returns the snapshots of a run ordered by seq.
// Speed is not persisted and reads back as zero.
//
// Returns an empty slice (not nil) if no snapshots exist for the run.
func (s *Store) ReadSnapshots(ctx context.Context, runID string) ([]ir.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state FROM snapshots
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []ir.Snapshot{}
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap ir.Snapshot
		if err := json.Unmarshal([]byte(state), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, snap.Clone())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// ReadLog returns the log entries of a run ordered by position.
//
// Returns an empty slice (not nil) if the run logged nothing.
func (s *Store) ReadLog(ctx context.Context, runID string) ([]ir.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, position, label, step FROM log_entries
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.LogEntry{}
	for rows.Next() {
		var e ir.LogEntry
		if err := rows.Scan(&e.RunID, &e.Position, &e.Label, &e.Step); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.RunRecord, error) {
	var r ir.RunRecord
	err := row.Scan(
		&r.ID,
		&r.Program,
		&r.ProgramHash,
		&r.DrainPolicy,
		&r.Speed,
		&r.OperationCount,
		&r.Completed,
		&r.FinalStep,
		&r.EngineVersion,
		&r.TraceVersion,
	)
	return r, err
}
