package store

import (
	"path/filepath"
	"testing"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run header with minimal required fields.
func createTestRun(id, program string) ir.RunRecord {
	return ir.RunRecord{
		ID:             id,
		Program:        program,
		ProgramHash:    ir.ProgramHash(program),
		DrainPolicy:    "after-script",
		Speed:          1,
		OperationCount: 1,
		EngineVersion:  ir.EngineVersion,
		TraceVersion:   ir.TraceVersion,
	}
}

// createTestSnapshot creates a snapshot holding one synchronous item.
func createTestSnapshot(runID string, seq int64, log ...string) ir.Snapshot {
	return ir.Snapshot{
		RunID:     runID,
		Epoch:     1,
		Seq:       seq,
		Phase:     ir.PhaseStage,
		CallStack: []ir.ScheduledItem{{ID: seq, Name: "x", Kind: ir.KindSync}},
		Log:       log,
		Step:      1,
		Running:   true,
	}.Clone()
}
