package catalog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/ir"
	"github.com/roach88/evpatch/internal/testutil"
)

func TestLoad_DefaultInitializers(t *testing.T) {
	c := testutil.Catalog(t)

	inits := c.Initializers()
	require.Len(t, inits, 2)
	assert.Equal(t, "InitializeEvent", inits[0].Name)
	assert.Equal(t, "InitializeCommonEvent", inits[1].Name)
	assert.Equal(t, 2, inits[0].Init.Offset)
}

func TestLoad_RejectsUnknownEnum(t *testing.T) {
	src := `{"main_classes":[{"index":1,"name":"x","instrs":[
		{"index":0,"name":"Foo","args":[{"name":"a","type":0,"enum_name":"Nope"}]}]}],"enums":[]}`
	_, err := catalog.Load(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown enum")
}

func TestLoad_RejectsDuplicateInstruction(t *testing.T) {
	src := `{"main_classes":[{"index":1,"name":"x","instrs":[
		{"index":0,"name":"Foo","args":[]},{"index":0,"name":"Bar","args":[]}]}]}`
	_, err := catalog.Load(strings.NewReader(src))
	require.Error(t, err)
}

func TestByName_CaseInsensitive(t *testing.T) {
	c := testutil.Catalog(t)
	doc, ok := c.ByName("seteventflag")
	require.True(t, ok)
	assert.Equal(t, int32(2003), doc.Bank)
	assert.Equal(t, int32(66), doc.ID)
}

func TestParseCommand_Layout(t *testing.T) {
	c := testutil.Catalog(t)

	// s8, u32, s16, s32 aligned to 0, 4, 8, 12
	instr, params, err := c.ParseCommand("DisplayBossHealthBar(Enabled, 1035500800, 0, 904550000)")
	require.NoError(t, err)
	assert.Empty(t, params)
	assert.Len(t, instr.ArgData, 16)
	assert.Equal(t, byte(1), instr.ArgData[0])
	assert.Equal(t, []byte{0x00, 0x6a, 0xb8, 0x3d}, instr.ArgData[4:8])
}

func TestParseCommand_Placeholders(t *testing.T) {
	c := testutil.Catalog(t)

	instr, params, err := c.ParseCommand("SetEventFlag(0, X0_4, X4_1);")
	require.NoError(t, err)
	assert.Equal(t, "2003[66]", instr.Key())
	require.Len(t, params, 2)
	assert.Equal(t, ir.Parameter{TargetStartByte: 4, SourceStartByte: 0, ByteCount: 4}, params[0])
	assert.Equal(t, ir.Parameter{TargetStartByte: 8, SourceStartByte: 4, ByteCount: 1}, params[1])
}

func TestParseCommand_PlaceholderTooWide(t *testing.T) {
	c := testutil.Catalog(t)
	_, _, err := c.ParseCommand("SetEventFlag(0, 100, X0_4)")
	require.Error(t, err)
}

func TestParseCommand_NumericName(t *testing.T) {
	c := testutil.Catalog(t)
	instr, _, err := c.ParseCommand("2004[04](1035500800, 0)")
	require.NoError(t, err)
	assert.Equal(t, "ChangeCharacterEnableState(1035500800, Disabled)", c.Format(instr, nil))
}

func TestParseCommand_InitializerVarargs(t *testing.T) {
	c := testutil.Catalog(t)
	instr, params, err := c.ParseCommand("InitializeEvent(0, 90005, 1035500800, X0_4, -1)")
	require.NoError(t, err)
	assert.Len(t, instr.ArgData, 20)
	require.Len(t, params, 1)
	assert.Equal(t, int64(12), params[0].TargetStartByte)
}

func TestParseCommand_Errors(t *testing.T) {
	c := testutil.Catalog(t)
	for _, text := range []string{
		"NoSuchInstruction(1)",
		"SetEventFlag(0, 1)",
		"SetEventFlag(0, 1, 1, 1)",
		"SetEventFlag(0, 1, MAYBE)",
		"SetEventFlag 0, 1, 1",
		"SetEventFlag(300, 1, 1)",
	} {
		_, _, err := c.ParseCommand(text)
		assert.Error(t, err, text)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	c := testutil.Catalog(t)
	for _, text := range []string{
		"IfEventFlag(OR_01, ON, 0, 1035500800)",
		"IfCharacterHPRatio(MAIN, 1035500800, 2, 0.5)",
		"SetEventFlag(0, X0_4, ON)",
		"InitializeEvent(1, 90005, X4_4, -1)",
	} {
		instr, params, err := c.ParseCommand(text)
		require.NoError(t, err, text)
		assert.Equal(t, text, c.Format(instr, params))
	}
}

func TestFormat_Undocumented(t *testing.T) {
	c := testutil.Catalog(t)
	got := c.Format(&ir.Instruction{Bank: 9999, ID: 1, ArgData: []byte{1, 2}}, nil)
	assert.Equal(t, "9999[01](0102)", got)
}

func TestDecodedPut_TouchesOnlyTarget(t *testing.T) {
	c := testutil.Catalog(t)
	instr, _, err := c.ParseCommand("DisplayBossHealthBar(Enabled, 1035500800, 0, 904550000)")
	require.NoError(t, err)
	before := append([]byte(nil), instr.ArgData...)

	d, err := c.Decode(instr)
	require.NoError(t, err)
	require.NoError(t, d.Put(instr.ArgData, 2, 1))

	assert.Equal(t, before[:8], instr.ArgData[:8])
	assert.Equal(t, []byte{1, 0}, instr.ArgData[8:10])
	assert.Equal(t, before[10:], instr.ArgData[10:])

	assert.Error(t, d.Put(instr.ArgData, 2, 1<<20))
	assert.Error(t, d.Put(instr.ArgData, 9, 0))
}
