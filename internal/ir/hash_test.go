package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventHashDeterminism(t *testing.T) {
	a := makeEvent()
	b := makeEvent()
	assert.Equal(t, EventHash(a), EventHash(b), "EventHash must be deterministic")
	assert.Equal(t, EventHash(a), EventHash(a.Clone()), "a clone hashes like its original")
}

func TestEventHashChangesWithContent(t *testing.T) {
	base := EventHash(makeEvent())

	tests := []struct {
		name   string
		mutate func(ev *Event)
	}{
		{"id", func(ev *Event) { ev.ID = 101 }},
		{"rest", func(ev *Event) { ev.Rest = RestEnd }},
		{"arg byte", func(ev *Event) { ev.Instructions[1].ArgData[0] = 0 }},
		{"instruction id", func(ev *Event) { ev.Instructions[1].ID = 1 }},
		{"instruction order", func(ev *Event) {
			ev.Instructions[0], ev.Instructions[2] = ev.Instructions[2], ev.Instructions[0]
		}},
		{"parameter", func(ev *Event) { ev.Parameters[1].SourceStartByte = 8 }},
		{"parameter removed", func(ev *Event) { ev.Parameters = ev.Parameters[:1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := makeEvent()
			tt.mutate(ev)
			assert.NotEqual(t, base, EventHash(ev))
		})
	}
}

func TestEventHashArgBoundaries(t *testing.T) {
	// the same bytes split differently between instructions
	a := &Event{Instructions: []*Instruction{
		{Bank: 1, ID: 1, ArgData: []byte{1, 2}},
		{Bank: 1, ID: 1, ArgData: []byte{3}},
	}}
	b := &Event{Instructions: []*Instruction{
		{Bank: 1, ID: 1, ArgData: []byte{1}},
		{Bank: 1, ID: 1, ArgData: []byte{2, 3}},
	}}
	assert.NotEqual(t, EventHash(a), EventHash(b))
}

func TestCommandHashNFC(t *testing.T) {
	// "é" precomposed vs. decomposed
	assert.Equal(t, CommandHash([]string{"caf\u00e9"}), CommandHash([]string{"cafe\u0301"}))
}

func TestCommandHashLineBoundaries(t *testing.T) {
	assert.NotEqual(t, CommandHash([]string{"a", "b"}), CommandHash([]string{"ab"}))
	assert.NotEqual(t, CommandHash([]string{"a", "b"}), CommandHash([]string{"b", "a"}))
	assert.NotEqual(t, CommandHash(nil), CommandHash([]string{""}))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	// an empty event and an empty command list share no hash
	empty := &Event{}
	assert.NotEqual(t, EventHash(empty), CommandHash(nil))
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "evpatch/event/v1", DomainEvent)
	assert.Equal(t, "evpatch/command/v1", DomainCommand)
}

func TestHashHexEncoding(t *testing.T) {
	for _, h := range []string{EventHash(makeEvent()), CommandHash([]string{"WaitFixedTimeSeconds(1)"})} {
		assert.Len(t, h, 64, "SHA-256 hex")
		_, err := hex.DecodeString(h)
		assert.NoError(t, err)
	}
}
