package ir

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScript_HexArgs(t *testing.T) {
	s := &Script{Map: "m10_00_00_00", Events: []*Event{makeEvent()}}

	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, s))
	assert.Contains(t, buf.String(), `"args": "0000000001000000"`)
	assert.Contains(t, buf.String(), `"instr_index": 2`)
}

func TestReadScript_WriteScript_Stable(t *testing.T) {
	s := &Script{Map: "m10_00_00_00", Events: []*Event{makeEvent()}}

	var first bytes.Buffer
	require.NoError(t, WriteScript(&first, s))

	parsed, err := ReadScript(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, WriteScript(&second, parsed))
	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, EventHash(s.Events[0]), EventHash(parsed.Events[0]))
}

func TestReadScript_RejectsBadParameter(t *testing.T) {
	src := `{"map":"m","events":[{"id":1,"rest":0,
		"instructions":[{"bank":1000,"id":0,"args":"01000000"}],
		"parameters":[{"instr_index":3,"target_start_byte":0,"source_start_byte":0,"byte_count":4}]}]}`
	_, err := ReadScript(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction 3")
}

func TestReadScript_RejectsBadHex(t *testing.T) {
	src := `{"map":"m","events":[{"id":1,"rest":0,"instructions":[{"bank":1000,"id":0,"args":"zz"}],"parameters":[]}]}`
	_, err := ReadScript(strings.NewReader(src))
	require.Error(t, err)
}

func TestScriptFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	s := &Script{Map: "m", Events: []*Event{makeEvent()}}
	require.NoError(t, WriteScriptFile(path, s))

	got, err := ReadScriptFile(path)
	require.NoError(t, err)
	assert.Equal(t, "m", got.Map)
	require.NotNil(t, got.Event(100))
	assert.Equal(t, int64(100), got.MaxEventID())
}

func TestScriptReplace(t *testing.T) {
	s := &Script{Map: "m", Events: []*Event{{ID: 1}, {ID: 2}}}
	s.Replace(&Event{ID: 2, Rest: RestEnd})
	s.Replace(&Event{ID: 3})

	require.Len(t, s.Events, 3)
	assert.Equal(t, RestEnd, s.Event(2).Rest)
	assert.NotNil(t, s.Event(3))
	assert.Nil(t, s.Event(4))
}
