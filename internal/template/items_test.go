package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/ir"
	"github.com/roach88/evpatch/internal/testutil"
)

const itemFlags = `
ItemFlags:
  51010000: 51010500
  51010110: 51010600
  51010300: 51010700
`

func itemScript(t *testing.T, cat *catalog.Catalog) *ir.Script {
	t.Helper()
	return &ir.Script{Map: "m10_01", Events: []*ir.Event{
		testEvent(t, cat, 0,
			"InitializeEvent(0, 11000510, 4000, 51010110, 77)",
		),
		testEvent(t, cat, 11000500,
			"AwardItemLot(1000)",
			"SetEventFlag(0, 51010000, ON)",
		),
		testEvent(t, cat, 11000510,
			"AwardItemLot(X0_4)",
			"SetEventFlag(0, X4_4, ON)",
		),
	}}
}

func TestItemPass(t *testing.T) {
	cat := testutil.Catalog(t)
	cfg := parseConfig(t, `
ItemEvents:
  - ID: 11000500
    Map: m10_01
    ItemTemplate:
      - Type: item
        EventFlag: "51010000"
  - ID: 11000510
    ItemTemplate:
      - Type: item
        EventFlagArg: X4_4
        RemoveArg: X8_4
`)
	in := itemScript(t, cat)

	res, err := patch(t, cat, cfg, parseAssignment(t, itemFlags), in)
	require.NoError(t, err)
	out := res.Scripts[0]

	assert.Equal(t, []string{"AwardItemLot(1000)", "SetEventFlag(0, 51010500, ON)"}, lines(cat, out.Event(11000500)))
	assert.Equal(t, []string{"AwardItemLot(X0_4)", "SetEventFlag(0, X4_4, ON)"}, lines(cat, out.Event(11000510)))
	assert.Equal(t, []string{"InitializeEvent(0, 11000510, 4000, 51010600, 0)"}, lines(cat, out.Event(0)))

	assert.Equal(t, []string{"InitializeEvent(0, 11000510, 4000, 51010110, 77)"}, lines(cat, in.Event(0)))
}

func TestItemPass_EventFlagArgCopiesSecondArgument(t *testing.T) {
	cat := testutil.Catalog(t)
	cfg := parseConfig(t, `
ItemEvents:
  - ID: 11000520
    ItemTemplate:
      - Type: item
        EventFlagArg: X0_4 X4_4
`)
	in := &ir.Script{Map: "m10_01", Events: []*ir.Event{
		testEvent(t, cat, 0,
			"InitializeEvent(0, 11000520, 51010000, 51010300)",
			"InitializeEvent(1, 11000520, 51010000, 51019999)",
		),
		testEvent(t, cat, 11000520, "SetEventFlag(0, X0_4, ON)"),
	}}

	res, err := patch(t, cat, cfg, parseAssignment(t, itemFlags), in)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"InitializeEvent(0, 11000520, 51010700, 51010300)",
		"InitializeEvent(1, 11000520, 51010000, 51019999)",
	}, lines(cat, res.Scripts[0].Event(0)))
}

func TestItemPass_ExtrasUseAuthoredFlags(t *testing.T) {
	cat := testutil.Catalog(t)
	cfg := parseConfig(t, `
ItemEvents:
  - ID: 11000500
    Map: m10_01
    ItemTemplate:
      - Type: item
        EventFlag: "51010000"
        Remove: AwardItemLot(1000)
        Add:
          - Command: WaitFixedTimeSeconds(2)
            Before: SetEventFlag(0, 51010000, ON)
`)

	res, err := patch(t, cat, cfg, parseAssignment(t, itemFlags), itemScript(t, cat))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"WaitFixedTimeSeconds(2)",
		"SetEventFlag(0, 51010500, ON)",
	}, lines(cat, res.Scripts[0].Event(11000500)))
}

func TestItemPass_Skipped(t *testing.T) {
	cat := testutil.Catalog(t)
	tests := []struct {
		name string
		cfg  string
	}{
		{"flag did not move", `
ItemEvents:
  - ID: 11000500
    ItemTemplate:
      - Type: item
        EventFlag: "51019999"
        Remove: AwardItemLot(1000)
`},
		{"default template", `
ItemEvents:
  - ID: 11000500
    ItemTemplate:
      - Type: default
        EventFlag: "51010000"
`},
		{"other map", `
ItemEvents:
  - ID: 11000500
    Map: m10_02
    ItemTemplate:
      - Type: item
        EventFlag: "51010000"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := patch(t, cat, parseConfig(t, tt.cfg), parseAssignment(t, itemFlags), itemScript(t, cat))
			require.NoError(t, err)
			assert.Equal(t, []string{"AwardItemLot(1000)", "SetEventFlag(0, 51010000, ON)"}, lines(cat, res.Scripts[0].Event(11000500)))
		})
	}
}

func TestItemPass_MissingEvent(t *testing.T) {
	cat := testutil.Catalog(t)
	cfg := parseConfig(t, `
ItemEvents:
  - ID: 11000999
    Map: m10_01
    ItemTemplate:
      - Type: item
        EventFlag: "51010000"
`)
	_, err := patch(t, cat, cfg, parseAssignment(t, itemFlags), itemScript(t, cat))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item event not found")
}

func TestItemPass_FailedTemplateLeavesEventAlone(t *testing.T) {
	cat := testutil.Catalog(t)
	cfg := parseConfig(t, `
ItemEvents:
  - ID: 11000500
    Map: m10_01
    ItemTemplate:
      - Type: item
        EventFlag: "51010000"
        Remove: HandleBossDefeat(1000)
`)
	in := itemScript(t, cat)
	_, err := patch(t, cat, cfg, parseAssignment(t, itemFlags), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ItemEvents[0].ItemTemplate[0]")
	assert.Equal(t, []string{"AwardItemLot(1000)", "SetEventFlag(0, 51010000, ON)"}, lines(cat, in.Event(11000500)))
}

func TestInitArgIndex(t *testing.T) {
	i, err := initArgIndex("X8_4")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	for _, bad := range []string{"X2_4", "X0_2", "flag", "X4"} {
		_, err := initArgIndex(bad)
		assert.Error(t, err, bad)
	}
}
