package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/harness"
)

const cliScenario = `
name: remove_boss_handler
description: "Remove one instruction"
config:
  ExistingEvents:
    m10_00:
      11000800:
        Edits:
          - Match: HandleBossDefeat(1000)
            Remove: First
scripts:
  - map: m10_00
    events:
      - id: 11000800
        commands:
          - HandleBossDefeat(1000)
          - SetEventFlag(0, 11000800, ON)
assertions:
  - type: event_equals
    map: m10_00
    event: 11000800
    commands:
      - SetEventFlag(0, 11000800, ON)
`

func TestTestCommand_HarnessScenarios(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		filepath.Join("..", "harness", "testdata", "scenarios"), "--catalog", catalogPath)
	require.NoError(t, err, output)
	assert.Contains(t, output, "✓ edit_existing")
	assert.Contains(t, output, "✓ missing_match")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}),
		filepath.Join("..", "harness", "testdata", "scenarios"), "--catalog", catalogPath, "--filter", "boss_*")
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "boss_duplicate", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_Golden(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "remove_boss_handler.yaml", cliScenario)
	goldenPath := goldenFilePath(dir, "remove_boss_handler")

	// no golden file: assertions decide
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--catalog", catalogPath)
	require.NoError(t, err)

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--catalog", catalogPath, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ remove_boss_handler (golden updated)")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"SetEventFlag(0, 11000800, ON)"`)

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--catalog", catalogPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	output, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--catalog", catalogPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ remove_boss_handler")
	assert.Contains(t, output, "golden file mismatch")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--catalog", catalogPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_Empty(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir(), "--catalog", catalogPath)
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	catalogPath := writeCatalog(t, t.TempDir())

	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		filepath.Join(t.TempDir(), "missing"), "--catalog", catalogPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
