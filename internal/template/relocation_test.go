package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/config"
)

func TestNewRelocation_Kinds(t *testing.T) {
	dupe := &config.Dupe{Type: config.DupeRewrite, Entity: "1001", Condition: "OR_01 AND_02"}
	main := &config.Placement{Source: 1000, Target: 2000, DupeIndex: -1, Reloc: map[int64]int64{1001: 2001}}
	copy0 := &config.Placement{Source: 1000, Target: 2100, DupeIndex: 0, NewEvent: 1, Reloc: map[int64]int64{1001: 2101}}

	tests := []struct {
		name   string
		pl     *config.Placement
		kind   string
		ids    map[int64]int64
		groups map[int64]int64
	}{
		{"main ignores kind", main, config.DupeRewrite, map[int64]int64{1000: 2000, 1001: 2001}, map[int64]int64{}},
		{"dupe none", copy0, config.DupeNone, map[int64]int64{}, map[int64]int64{}},
		{"dupe replace", copy0, config.DupeReplace, map[int64]int64{1000: 2100}, map[int64]int64{}},
		{"dupe rewrite", copy0, config.DupeRewrite, map[int64]int64{1000: 2100, 1001: 2101}, map[int64]int64{-1: -12, 2: 13}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRelocation(1000, tt.pl, tt.kind, dupe, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.ids, r.IDs)
			assert.Equal(t, tt.groups, r.Groups)
		})
	}
}

func TestNewRelocation_HelperWithoutReloc(t *testing.T) {
	pl := &config.Placement{Source: 1000, Target: 2100, DupeIndex: 0, NewEvent: 1}
	_, err := NewRelocation(1000, pl, config.DupeRewrite, &config.Dupe{Type: config.DupeRewrite, Entity: "1001"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helper entity 1001")
}

func TestNewRelocation_TooManyGroups(t *testing.T) {
	pl := &config.Placement{Source: 1000, Target: 2100, DupeIndex: 0, NewEvent: 1}
	dupe := &config.Dupe{Type: config.DupeRewrite, Condition: "OR_01 OR_02 OR_03 OR_04 OR_05"}
	_, err := NewRelocation(1000, pl, config.DupeRewrite, dupe, nil)
	require.Error(t, err)
}

func TestNewRelocation_ReplaceFollowsDupeIndex(t *testing.T) {
	dupes := map[int64][]int64{
		1000: {2100, 2200},
		1001: {2101, 2201},
		1002: {2102},
	}
	second := &config.Placement{Source: 1000, Target: 2200, DupeIndex: 1, NewEvent: 1, Reloc: map[int64]int64{1005: 2005}}

	r, err := NewRelocation(1000, second, config.DupeReplace, nil, dupes)
	require.NoError(t, err)
	assert.True(t, r.ArgsOnly)
	assert.Equal(t, map[int64]int64{1000: 2200, 1001: 2201}, r.IDs, "1002 has no second duplicate; Reloc is not used")
	assert.Equal(t, "SetCharacterAIState(1001, Enabled)", r.Command("SetCharacterAIState(1001, Enabled)"))
	assert.Equal(t, int64(2201), r.ID(1001))
	assert.Equal(t, "{1000->2200 1001->2201 args}", r.String())

	main := &config.Placement{Source: 1000, Target: 2000, DupeIndex: -1}
	r, err = NewRelocation(1000, main, config.DupeReplace, nil, dupes)
	require.NoError(t, err)
	assert.False(t, r.ArgsOnly)
	assert.Equal(t, map[int64]int64{1000: 2000}, r.IDs)
}

func TestConditionGroupNames(t *testing.T) {
	v, err := ParseConditionGroup("OR_01")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	v, err = ParseConditionGroup("AND_12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	for _, bad := range []string{"MAIN", "OR_00", "OR_16", "XOR_01", "OR"} {
		_, err := ParseConditionGroup(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "OR_12", ConditionGroupName(-12))
	assert.Equal(t, "AND_03", ConditionGroupName(3))
}

func TestRelocation_Command(t *testing.T) {
	r := &Relocation{IDs: map[int64]int64{1000: 2000}, Groups: map[int64]int64{-1: -12}}
	assert.Equal(t, "IfCharacterHPRatio(OR_12, 2000, 1, 0.9)", r.Command("IfCharacterHPRatio(OR_01, 1000, 1, 0.9)"))
	assert.Equal(t, "SetEventFlag(0, 11000, ON)", r.Command("SetEventFlag(0, 11000, ON)"))
	assert.Equal(t, "AwardItemLot(X1000_4)", r.Command("AwardItemLot(X1000_4)"))
	assert.Equal(t, "{1000->2000 OR_01->OR_12}", r.String())

	var none *Relocation
	assert.True(t, none.Empty())
	assert.Equal(t, "HandleBossDefeat(1000)", none.Command("HandleBossDefeat(1000)"))
	assert.Equal(t, int64(5), none.ID(5))
}
