package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplayDeterministic(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	path := writeProgram(t, orderProgram)
	persistRun(t, dbPath, "run-a", path)
	persistRun(t, dbPath, "run-b", "--policy", "every-turn", path)

	out, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ run-a deterministic (after-script, 4 labels)")
	assert.Contains(t, out, "✓ run-b deterministic (every-turn, 4 labels)")
	assert.Contains(t, out, "All 2 runs deterministic.")
}

func TestReplaySpecificRunJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	path := writeProgram(t, orderProgram)
	persistRun(t, dbPath, "run-a", path)
	persistRun(t, dbPath, "run-b", path)

	out, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-b")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Runs, 1)
	run := resp.Data.Runs[0]
	assert.Equal(t, "run-b", run.RunID)
	assert.Equal(t, run.StoredDigest, run.ReplayDigest)
	assert.Equal(t, run.StoredLog, run.ReplayLog)
}

func TestReplayDetectsDivergence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	persistRun(t, dbPath, "run-a", writeProgram(t, orderProgram))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE runs SET program = ? WHERE id = ?`, `console.log("other");`, "run-a")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ run-a diverged")
	assert.Contains(t, out, "Determinism check FAILED.")
}

func TestReplaySkipsIncompleteRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.WriteRun(context.Background(), ir.RunRecord{
		ID:             "partial",
		Program:        orderProgram,
		ProgramHash:    "h",
		DrainPolicy:    "after-script",
		Speed:          1,
		OperationCount: 4,
		EngineVersion:  ir.EngineVersion,
		TraceVersion:   ir.TraceVersion,
	}))
	require.NoError(t, st.Close())

	out, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "- partial skipped (incomplete)")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	persistRun(t, dbPath, "run-a", writeProgram(t, orderProgram))

	_, _, err := execCommand(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, errorCode(err))
}

func TestReplayHelpText(t *testing.T) {
	cmd := NewReplayCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "Exit codes:")
	assert.Contains(t, cmd.Long, "Incomplete runs")
}
