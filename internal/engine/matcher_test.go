package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/testutil"
)

func TestMatch_PlaceholderNormalization(t *testing.T) {
	cat := testutil.Catalog(t)

	tests := []struct {
		name    string
		pattern string
		instr   string
		// stale marks argument bytes that hold a leftover runtime value
		stale []int
	}{
		{"width 1", "SetEventFlag(X0_1, 1000, ON)", "SetEventFlag(X0_1, 1000, ON)", []int{0}},
		{"width 2", "DisplayBossHealthBar(Enabled, 5000, X4_2, 900)", "DisplayBossHealthBar(Enabled, 5000, X4_2, 900)", []int{8, 9}},
		{"width 4", "SetEventFlag(0, X0_4, ON)", "SetEventFlag(0, X0_4, ON)", []int{4, 5, 6, 7}},
		{"different source offset", "SetEventFlag(0, X8_4, ON)", "SetEventFlag(0, X0_4, ON)", nil},
		{"pattern narrower than slot", "SetEventFlag(0, X0_1, ON)", "SetEventFlag(0, X0_4, ON)", []int{4, 5, 6, 7}},
		{"pattern zero for placeholder", "SetEventFlag(0, 0, ON)", "SetEventFlag(0, X0_4, ON)", []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := CompileMatcher(cat, literal(tt.pattern))
			require.NoError(t, err)

			ev := testEvent(t, cat, 1, tt.instr)
			for _, b := range tt.stale {
				ev.Instructions[0].ArgData[b] = 0x7f
			}
			assert.True(t, Match(m, viewAt(cat, ev, 0)))
		})
	}
}

func TestMatch_LiteralMismatch(t *testing.T) {
	cat := testutil.Catalog(t)
	m, err := CompileMatcher(cat, literal("SetEventFlag(0, 1000, ON)"))
	require.NoError(t, err)

	ev := testEvent(t, cat, 1,
		"SetEventFlag(0, 1001, ON)",
		"SetEventFlag(0, 1000, OFF)",
		"IfEventFlag(MAIN, ON, 0, 1000)",
		"SetEventFlag(0, 1000, ON)",
	)
	assert.False(t, Match(m, viewAt(cat, ev, 0)))
	assert.False(t, Match(m, viewAt(cat, ev, 1)))
	assert.False(t, Match(m, viewAt(cat, ev, 2)))
	assert.True(t, Match(m, viewAt(cat, ev, 3)))
}

func TestMatch_StaleBytesWithoutParameterDoNotMatch(t *testing.T) {
	cat := testutil.Catalog(t)
	m, err := CompileMatcher(cat, literal("SetEventFlag(0, X0_4, ON)"))
	require.NoError(t, err)

	ev := testEvent(t, cat, 1, "SetEventFlag(0, 1000, ON)")
	assert.False(t, Match(m, viewAt(cat, ev, 0)))
}

func TestMatch_AuthoredZeroIsIndistinguishable(t *testing.T) {
	// A literal zero and a parameterized slot compare equal. This is a known
	// limitation of zero-normalization.
	cat := testutil.Catalog(t)
	m, err := CompileMatcher(cat, literal("SetEventFlag(0, X0_4, ON)"))
	require.NoError(t, err)

	ev := testEvent(t, cat, 1, "SetEventFlag(0, 0, ON)")
	assert.True(t, Match(m, viewAt(cat, ev, 0)))
}

func TestMatch_Init(t *testing.T) {
	cat := testutil.Catalog(t)
	ev := testEvent(t, cat, 0,
		"InitializeEvent(0, 11000800, 1000, 2000)",
		"InitializeEvent(1, 11000800, 1001, 2001)",
		"InitializeCommonEvent(0, 9005800, 5)",
		"SetEventFlag(0, 11000800, ON)",
	)

	tests := []struct {
		name string
		init *config.InitMatcher
		want []bool
	}{
		{"any initializer", &config.InitMatcher{}, []bool{true, true, true, false}},
		{"callee", &config.InitMatcher{Callee: i64(11000800)}, []bool{true, true, false, false}},
		{"slot", &config.InitMatcher{Index: i64(1), Callee: i64(11000800)}, []bool{false, true, false, false}},
		{"argument", &config.InitMatcher{Arguments: []*int64{nil, i64(2001)}}, []bool{false, true, false, false}},
		{"common event", &config.InitMatcher{Callee: i64(9005800), Arguments: []*int64{i64(5)}}, []bool{false, false, true, false}},
		{"too many arguments", &config.InitMatcher{Arguments: []*int64{nil, nil, nil}}, []bool{false, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := CompileMatcher(cat, &config.InstructionMatcher{Init: tt.init})
			require.NoError(t, err)
			for i, want := range tt.want {
				assert.Equal(t, want, Match(m, viewAt(cat, ev, i)), "instruction %d", i)
			}
		})
	}
}

func TestMatch_Both(t *testing.T) {
	cat := testutil.Catalog(t)
	ev := testEvent(t, cat, 0,
		"InitializeEvent(0, 11000800, 1000)",
		"InitializeEvent(1, 11000800, 1001)",
	)
	m, err := CompileMatcher(cat, &config.InstructionMatcher{
		Init:        &config.InitMatcher{Callee: i64(11000800)},
		Instruction: "InitializeEvent(1, 11000800, 1001)",
	})
	require.NoError(t, err)
	require.IsType(t, BothMatcher{}, m)

	assert.False(t, Match(m, viewAt(cat, ev, 0)))
	assert.True(t, Match(m, viewAt(cat, ev, 1)))
}

func TestCompileMatcher(t *testing.T) {
	cat := testutil.Catalog(t)

	m, err := CompileMatcher(cat, nil)
	require.NoError(t, err)
	assert.Equal(t, AnyMatcher{}, m)

	m, err = CompileMatcher(cat, &config.InstructionMatcher{})
	require.NoError(t, err)
	assert.Equal(t, AnyMatcher{}, m)

	m, err = CompileMatcher(cat, &config.InstructionMatcher{Init: &config.InitMatcher{Callee: i64(5)}})
	require.NoError(t, err)
	assert.IsType(t, InitMatcher{}, m)

	_, err = CompileMatcher(cat, literal("NoSuchInstruction(1)"))
	require.Error(t, err)
	assert.True(t, IsInvalidCommand(err))
}

func TestMatch_AnyMatchesUndocumented(t *testing.T) {
	cat := testutil.Catalog(t)
	ev := testEvent(t, cat, 1, "SetEventFlag(0, 1000, ON)")
	ev.Instructions[0].Bank = 9999

	in := viewAt(cat, ev, 0)
	assert.Nil(t, in.Decoded)
	assert.True(t, Match(AnyMatcher{}, in))
	assert.False(t, Match(InitMatcher{}, in))
}
