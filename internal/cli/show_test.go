package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowCommand_Text(t *testing.T) {
	dbPath := recordRuns(t)

	stdout, _, err := execute(t, NewShowCommand(testRootOptions(t)), "--db", dbPath, "cli-run-1")
	require.NoError(t, err)
	assert.Equal(t, passingReport, stdout, "stored report matches the streamed one")
}

func TestShowCommand_JSON(t *testing.T) {
	dbPath := recordRuns(t)
	rootOpts := testRootOptions(t)
	rootOpts.Format = "json"

	stdout, _, err := execute(t, NewShowCommand(rootOpts), "--db", dbPath, "cli-run-2")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "cli-run-2", resp.Data.ID)
	assert.False(t, resp.Data.Ok)
	require.Len(t, resp.Data.Tests, 2)
	assert.Equal(t, "compares", resp.Data.Tests[0].Name)
	assert.False(t, resp.Data.Tests[0].Ok)
	assert.Equal(t, 1, resp.Data.Tests[0].AssertsTotal)
	assert.Equal(t, "fine", resp.Data.Tests[1].Name)
	assert.True(t, resp.Data.Tests[1].Ok)
	assert.Contains(t, resp.Data.TAP, "# not ok\n")
}

func TestShowCommand_NotFound(t *testing.T) {
	dbPath := recordRuns(t)

	_, _, err := execute(t, NewShowCommand(testRootOptions(t)), "--db", dbPath, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "run not found: missing", err.Error())
}

func TestShowCommand_RequiresRunID(t *testing.T) {
	_, _, err := execute(t, NewShowCommand(testRootOptions(t)))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
