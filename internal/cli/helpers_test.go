package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
	"github.com/roach88/evpatch/internal/testutil"
)

// testConfig names and edits boss event 11000800 and adds one new event.
const testConfig = `
ExistingEvents:
  m10_00:
    11000800:
      Name: bossdefeat
      Edits:
        - Match: HandleBossDefeat(1000)
          Remove: First
NewEvents:
  m10_00:
    - Name: spawn
      ID: 11000900
      Rest: Restart
      Arguments: [flag, entity]
      Commands:
        - EndIfEventFlag(End, ON, 0, flag)
        - ChangeCharacterEnableState(entity, Enabled)
`

// failingConfig matches an instruction the test script does not have.
const failingConfig = `
ExistingEvents:
  m10_00:
    11000800:
      Edits:
        - Match: HandleBossDefeat(2000)
          Remove: First
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeCatalog writes the fixture catalog into dir.
func writeCatalog(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "catalog.json", string(testutil.CatalogJSON()))
}

// writeTestScripts writes the m10_00 input map into dir/in and returns
// the directory.
func writeTestScripts(t *testing.T, dir string) string {
	t.Helper()
	cat := testutil.Catalog(t)
	app := engine.NewApplicator(cat)

	boss := &ir.Event{ID: 11000800, Parameters: []ir.Parameter{}}
	require.NoError(t, app.Insert(boss, 0, []string{
		"IfCharacterDeathState(MAIN, 1000, Dead)",
		"HandleBossDefeat(1000)",
		"SetEventFlag(0, 11000800, ON)",
	}))
	s := &ir.Script{Map: "m10_00", Events: []*ir.Event{
		{ID: 0, Parameters: []ir.Parameter{}},
		boss,
	}}

	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, ir.WriteScriptFile(filepath.Join(in, "m10_00.json"), s))
	return in
}

// execute runs cmd with args and returns what it wrote.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
