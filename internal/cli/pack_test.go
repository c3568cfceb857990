package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/ir"
)

type packResponse struct {
	Status string     `json:"status"`
	Data   PackResult `json:"data"`
}

func TestPack_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.yaml", testConfig)

	output, err := execute(t, NewPackCommand(&RootOptions{Format: "text"}),
		"--config", path, "--map", "m10_00", "--event", "spawn")
	require.NoError(t, err)
	assert.Contains(t, output, "New event spawn 11000900 in m10_00")
	assert.Contains(t, output, "Arguments (2):")
	assert.Contains(t, output, "[0] EndIfEventFlag(End, ON, 0, X0_4)")
	assert.Contains(t, output, "[1] ChangeCharacterEnableState(X4_4, Enabled)")
}

func TestPack_ByIDWithCatalog(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "events.yaml", testConfig)
	catalogPath := writeCatalog(t, dir)

	output, err := execute(t, NewPackCommand(&RootOptions{Format: "json"}),
		"--config", path, "--map", "m10_00", "--event", "11000900", "--catalog", catalogPath)
	require.NoError(t, err)

	var resp packResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Parsed)
	assert.Equal(t, "spawn", resp.Data.Name)
	assert.Equal(t, int64(11000900), resp.Data.ID)
	assert.Equal(t, []PackedArgument{
		{Name: "flag", Offset: 0, Width: 4, Token: "X0_4"},
		{Name: "entity", Offset: 4, Width: 4, Token: "X4_4"},
	}, resp.Data.Arguments)
	assert.Equal(t, []string{
		"EndIfEventFlag(End, ON, 0, X0_4)",
		"ChangeCharacterEnableState(X4_4, Enabled)",
	}, resp.Data.Commands)
	assert.Equal(t, ir.CommandHash(resp.Data.Commands), resp.Data.Hash)
}

func TestPack_ArgumentIf(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.yaml", `
NewEvents:
  m10_00:
    - Name: chest
      Arguments:
        - Name: slot
          Width: 1
          If: chests
        - flag
      Commands:
        - SetEventFlag(0, flag, ON)
`)

	tests := []struct {
		options string
		token   string
	}{
		{"", "X0_4"},
		{"chests", "X4_4"},
	}
	for _, tt := range tests {
		t.Run("options="+tt.options, func(t *testing.T) {
			output, err := execute(t, NewPackCommand(&RootOptions{Format: "text"}),
				"--config", path, "--map", "m10_00", "--event", "chest", "--options", tt.options)
			require.NoError(t, err)
			assert.Contains(t, output, "SetEventFlag(0, "+tt.token+", ON)")
		})
	}
}

func TestPack_UnknownEvent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.yaml", testConfig)

	output, err := execute(t, NewPackCommand(&RootOptions{Format: "text"}),
		"--config", path, "--map", "m10_00", "--event", "nosuch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [E005]")
}

func TestFindNewEvent(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, t.TempDir(), "events.yaml", testConfig))
	require.NoError(t, err)
	events := cfg.NewEvents["m10_00"]

	assert.Same(t, events[0], findNewEvent(events, "spawn"))
	assert.Same(t, events[0], findNewEvent(events, "11000900"))
	assert.Nil(t, findNewEvent(events, "11000901"))
	assert.Nil(t, findNewEvent(nil, "spawn"))
}
