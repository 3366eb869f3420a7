package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asitkr/event-loop-visualizer/internal/store"
	"github.com/asitkr/event-loop-visualizer/internal/testutil"
)

const orderProgram = `console.log("Start");
setTimeout(() => { console.log("Timeout"); }, 0);
Promise.resolve().then(() => { console.log("Promise"); });
console.log("End");
`

// writeProgram writes src to a temp file and returns its path.
func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// execCommand runs cmd with args and returns stdout and stderr.
func execCommand(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// persistRun runs a program into the database at dbPath under runID.
func persistRun(t *testing.T, dbPath, runID string, args ...string) {
	t.Helper()
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	opts.RunIDs = testutil.NewFixedRunID(runID)
	cmd := newRunCommandWith(opts)
	_, _, err := execCommand(cmd, append([]string{"--instant", "--db", dbPath}, args...)...)
	require.NoError(t, err)
}

func TestRunPrintsCanonicalOrder(t *testing.T) {
	path := writeProgram(t, orderProgram)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, RunIDs: testutil.NewFixedRunID("run-1")}

	out, _, err := execCommand(newRunCommandWith(opts), "--instant", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Run run-1 (after-script, 4 operations)")
	assert.Contains(t, out, "  1. Start\n  2. End\n  3. Promise.then callback\n  4. setTimeout callback\n")
	assert.Contains(t, out, "Steps: 4")
	assert.NotContains(t, out, "Trace persisted.")
}

func TestRunEveryTurnPolicy(t *testing.T) {
	path := writeProgram(t, orderProgram)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "json"}}

	out, _, err := execCommand(newRunCommandWith(opts), "--instant", "--policy", "every-turn", path)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "every-turn", resp.Data.Policy)
	assert.Equal(t, []string{"Start", "setTimeout callback", "Promise.then callback", "End"}, resp.Data.Log)
	assert.NotEmpty(t, resp.Data.Digest)
}

func TestRunReadsStdin(t *testing.T) {
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	cmd := newRunCommandWith(opts)
	cmd.SetIn(strings.NewReader(`console.log("only");`))

	out, _, err := execCommand(cmd, "--instant")
	require.NoError(t, err)
	assert.Contains(t, out, "1. only")
	assert.Contains(t, out, "Steps: 1")
}

func TestRunEmptyProgram(t *testing.T) {
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	cmd := newRunCommandWith(opts)
	cmd.SetIn(strings.NewReader("let x = 1;\n"))

	out, _, err := execCommand(cmd, "--instant", StdinPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(empty log)")
	assert.Contains(t, out, "Steps: 0")
}

func TestRunSnapshotsFlag(t *testing.T) {
	path := writeProgram(t, orderProgram)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}

	out, _, err := execCommand(newRunCommandWith(opts), "--instant", "--snapshots", path)
	require.NoError(t, err)
	assert.Contains(t, out, "01 start step=0 backlog=4")
	assert.Contains(t, out, "14 finish step=4 backlog=0 running=false")
}

func TestRunPersistsTrace(t *testing.T) {
	path := writeProgram(t, orderProgram)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, RunIDs: testutil.NewFixedRunID("persisted")}
	out, _, err := execCommand(newRunCommandWith(opts), "--instant", "--db", dbPath, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace persisted.")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	state, err := st.GetRunState(context.Background(), "persisted")
	require.NoError(t, err)
	assert.True(t, state.Run.Completed)
	assert.Equal(t, 4, state.Run.FinalStep)
	assert.Len(t, state.Snapshots, 14)
	assert.Equal(t, []string{"Start", "End", "Promise.then callback", "setTimeout callback"}, state.Labels())
}

func TestRunMissingProgramFile(t *testing.T) {
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	_, _, err := execCommand(newRunCommandWith(opts), "--instant", "/nonexistent/program.js")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, CodeProgram, errorCode(err))
}

func TestRunInvalidFlags(t *testing.T) {
	path := writeProgram(t, orderProgram)

	tests := []struct {
		name string
		args []string
	}{
		{"zero speed", []string{"--speed", "0", path}},
		{"negative speed", []string{"--speed", "-1", path}},
		{"infinite speed", []string{"--speed", "+Inf", path}},
		{"NaN speed", []string{"--speed", "NaN", path}},
		{"unknown policy", []string{"--policy", "sometimes", path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
			_, _, err := execCommand(newRunCommandWith(opts), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, CodeFlag, errorCode(err))
		})
	}
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "stdin")
	assert.Contains(t, cmd.Long, "--instant")
	assert.Contains(t, cmd.Long, "Example:")
}
