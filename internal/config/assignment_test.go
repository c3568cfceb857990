package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAssignment = `
Enemies:
  - Map: m10_00
    Event: 11005000
    Source: 1000
    Target: 2000
    Encounter: true
    Reloc:
      1001: 2001
  - Map: m10_00
    Event: 11005000
    Source: 1000
    Target: 2100
    DupeIndex: 0
    NewEvent: 11005900
  - Map: m12_01
    Event: 12015000
    Host: 3000
    Source: 1000
    Target: 3100
ItemFlags:
  51010000: 51010500
  50000: 60000
`

func TestParseAssignment(t *testing.T) {
	a, err := ParseAssignment([]byte(sampleAssignment))
	require.NoError(t, err)
	require.Len(t, a.Enemies, 3)

	main := a.Enemies[0]
	assert.Equal(t, -1, main.DupeIndex)
	assert.False(t, main.IsDupe())
	assert.True(t, main.Encounter)
	assert.Equal(t, int64(1000), main.HostEntity())
	assert.Equal(t, int64(11005000), main.OutputEvent())
	assert.Equal(t, map[int64]int64{1001: 2001}, main.Reloc)

	dupe := a.Enemies[1]
	assert.True(t, dupe.IsDupe())
	assert.Equal(t, int64(11005900), dupe.OutputEvent())

	assert.Equal(t, int64(3000), a.Enemies[2].HostEntity())

	assert.Len(t, a.PlacementsFor("m10_00"), 2)
	assert.Empty(t, a.PlacementsFor("m99_00"))
	assert.Equal(t, []int64{50000, 51010000}, a.ItemFlagKeys())
	assert.Equal(t, int64(51010500), a.ItemFlags[51010000])
}

func TestParseAssignment_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"unknown field", `
Enemies:
  - Map: m10_00
    Event: 1
    Source: 1000
    Target: 2000
    Bogus: 1
`, ErrSchema},
		{"missing target", `
Enemies:
  - Map: m10_00
    Event: 1
    Source: 1000
    Target: 0
`, ErrPlacement},
		{"dupe in place", `
Enemies:
  - Map: m10_00
    Event: 1
    Source: 1000
    Target: 2000
    DupeIndex: 0
`, ErrPlacement},
		{"zero duplicate id", `
Dupes:
  1000: [2100, 0]
`, ErrPlacement},
		{"event written twice", `
Enemies:
  - Map: m10_00
    Event: 1
    Source: 1000
    Target: 2000
  - Map: m10_00
    Event: 1
    Source: 1001
    Target: 2001
`, ErrPlacement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssignment([]byte(tt.doc))
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			assert.Contains(t, codes(le.Errors), tt.code)
		})
	}
}

func TestParseAssignment_SameEventInOtherMap(t *testing.T) {
	_, err := ParseAssignment([]byte(`
Enemies:
  - Map: m10_00
    Event: 1
    Source: 1000
    Target: 2000
  - Map: m11_00
    Event: 1
    Source: 1001
    Target: 2001
`))
	require.NoError(t, err)
}

func TestParseAssignment_Dupes(t *testing.T) {
	a, err := ParseAssignment([]byte(`
Dupes:
  1000: [2100, 2200]
  11005800: [11005810]
`))
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{1000: {2100, 2200}, 11005800: {11005810}}, a.Dupes)
}

func TestLoadAssignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleAssignment), 0o644))

	a, err := LoadAssignment(path)
	require.NoError(t, err)
	assert.Len(t, a.Enemies, 3)

	_, err = LoadAssignment(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPlacement_Clone(t *testing.T) {
	p := &Placement{Source: 1, Target: 2, Reloc: map[int64]int64{3: 4}}
	c := p.Clone()
	c.Reloc[3] = 5
	assert.Equal(t, int64(4), p.Reloc[3])
	assert.Nil(t, (*Placement)(nil).Clone())
}
