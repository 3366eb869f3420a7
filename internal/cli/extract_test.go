package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	out, _, err := execCommand(NewExtractCommand(&RootOptions{Format: "text"}), writeProgram(t, orderProgram))
	require.NoError(t, err)

	assert.Contains(t, out, "  1. line 1    immediate    Start")
	assert.Contains(t, out, "  2. line 2    deferred     setTimeout callback (0ms)")
	assert.Contains(t, out, "  3. line 3    continuation Promise.then callback")
	assert.Contains(t, out, "4 operations: 2 immediate, 1 deferred, 1 continuation")
}

func TestExtractJSON(t *testing.T) {
	cmd := NewExtractCommand(&RootOptions{Format: "json"})
	cmd.SetIn(strings.NewReader("setTimeout(() => {}, 250);\n"))

	out, _, err := execCommand(cmd)
	require.NoError(t, err)

	var resp struct {
		Data ExtractResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Operations, 1)
	assert.Equal(t, "deferred", resp.Data.Operations[0].Category)
	assert.Equal(t, int64(250), resp.Data.Operations[0].DelayMS)
	assert.Equal(t, 1, resp.Data.Summary.Deferred)
}

func TestExtractNothingRecognized(t *testing.T) {
	cmd := NewExtractCommand(&RootOptions{Format: "text"})
	cmd.SetIn(strings.NewReader("const x = 1;\n"))

	out, _, err := execCommand(cmd)
	require.NoError(t, err)
	assert.Contains(t, out, "No operations recognized.")
}
