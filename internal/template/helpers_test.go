package template

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
	"github.com/roach88/evpatch/internal/testutil"
)

func testEvent(t *testing.T, cat *catalog.Catalog, id int64, commands ...string) *ir.Event {
	t.Helper()
	ev := &ir.Event{ID: id, Parameters: []ir.Parameter{}}
	if len(commands) > 0 {
		require.NoError(t, engine.NewApplicator(cat).Insert(ev, 0, commands))
	}
	return ev
}

func lines(cat *catalog.Catalog, ev *ir.Event) []string {
	params := ir.ParamsByInstruction(ev)
	out := make([]string, len(ev.Instructions))
	for i, instr := range ev.Instructions {
		out[i] = cat.Format(instr, params[i])
	}
	return out
}

func parseConfig(t *testing.T, doc string) *config.EventConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, config.Validate(cfg))
	return cfg
}

func parseAssignment(t *testing.T, doc string) *config.Assignment {
	t.Helper()
	a, err := config.ParseAssignment([]byte(doc))
	require.NoError(t, err)
	return a
}

// patch runs both template passes over scripts.
func patch(t *testing.T, cat *catalog.Catalog, cfg *config.EventConfig, a *config.Assignment, scripts ...*ir.Script) (*engine.RunResult, error) {
	t.Helper()
	eng := engine.New(cat, cfg,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDs("")),
		engine.WithPass(NewEnemyPass(cat, cfg, a)),
		engine.WithPass(NewItemPass(cat, cfg, a)),
	)
	return eng.PatchAll(context.Background(), scripts)
}

// bossCommands is event 11005000 of m10_00: a boss fight for entity 1000
// with defeat flag 11000800 and start flag 11005800.
var bossCommands = []string{
	"ChangeCharacterEnableState(1000, Disabled)",
	"ForceCharacterDeath(1000, 0)",
	"EndIfEventFlag(End, ON, 0, 11000800)",
	"SetCharacterAIState(1000, Disabled)",
	"IfEventFlag(OR_01, ON, 0, 11005800)",
	"IfCharacterHPRatio(OR_01, 1000, 1, 0.9)",
	"IfConditionGroup(MAIN, PASS, OR_01)",
	"SetCharacterAIState(1000, Enabled)",
	"DisplayBossHealthBar(Enabled, 1000, 0, 904500)",
	"IfCharacterDeathState(MAIN, 1000, Dead)",
	"HandleBossDefeat(1000)",
	"SetEventFlag(0, 11000800, ON)",
}

// minibossCommands is event 11005100 of m10_00 for entity 3000.
var minibossCommands = []string{
	"EndIfEventFlag(End, ON, 0, 11000900)",
	"SetCharacterAIState(3000, Disabled)",
	"IfCharacterHPRatio(MAIN, 3000, 1, 0.5)",
	"SetCharacterAIState(3000, Enabled)",
	"IfCharacterDeathState(MAIN, 3000, Dead)",
	"SetEventFlag(0, 11000900, ON)",
}

const bossTemplates = `
EnemyEvents:
  - ID: 11005000
    Map: m10_00
    Template:
      - Type: segment
        Entity: 1000
        Dupe:
          Type: rewrite
          Condition: OR_01
        Segments:
          - Type: dead
            Start: ChangeCharacterEnableState(1000, Disabled)
            End: EndIfEventFlag(End, ON, 0, 11000800)
          - Type: setup
            Start: SetCharacterAIState(1000, Disabled)
          - Type: start
            Start: IfEventFlag(OR_01, ON, 0, 11005800); IfCharacterHPRatio(OR_01, 1000, 1, 0.9)
            End: DisplayBossHealthBar(Enabled, 1000, 0, 904500)
            EncounterOnly:
              - DisplayBossHealthBar(Enabled, 1000, 0, 904500)
          - Type: end
            Start: IfCharacterDeathState(MAIN, 1000, Dead)
            End: SetEventFlag(0, 11000800, ON)
  - ID: 11005100
    Map: m10_00
    Template:
      - Type: segment
        Entity: 3000
        Segments:
          - Type: disable
            Start: EndIfEventFlag(End, ON, 0, 11000900)
          - Type: setup
            Start: SetCharacterAIState(3000, Disabled)
          - Type: quickstart
            Start: IfCharacterHPRatio(MAIN, 3000, 1, 0.5)
            End: SetCharacterAIState(3000, Enabled)
          - Type: endphase
            Start: IfCharacterDeathState(MAIN, 3000, Dead)
            End: SetEventFlag(0, 11000900, ON)
`

// bossScript is m10_00 with event 0 starting both fights.
func bossScript(t *testing.T, cat *catalog.Catalog) *ir.Script {
	t.Helper()
	return &ir.Script{Map: "m10_00", Events: []*ir.Event{
		testEvent(t, cat, 0,
			"InitializeEvent(0, 11005000, 1000)",
			"InitializeEvent(0, 11005100, 3000)",
		),
		testEvent(t, cat, 11005000, bossCommands...),
		testEvent(t, cat, 11005100, minibossCommands...),
	}}
}
