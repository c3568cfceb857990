package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Assignment is the outcome of randomization that the templates
// implement: where each enemy was placed and which item flags moved.
type Assignment struct {
	Enemies []*Placement `yaml:"Enemies,omitempty"`
	// ItemFlags maps an authored item flag to the flag of the item that
	// now occupies its location.
	ItemFlags map[int64]int64 `yaml:"ItemFlags,omitempty"`
	// Dupes maps an authored entity to the ids of its duplicates, in
	// DupeIndex order.
	Dupes map[int64][]int64 `yaml:"Dupes,omitempty"`
}

// Placement puts the behavior of one source enemy into a host event for
// a target enemy.
type Placement struct {
	// Map and Event locate the host event, whose template says where each
	// segment goes.
	Map   string `yaml:"Map"`
	Event int64  `yaml:"Event"`
	// Host is the entity the host event was authored for. Defaults to
	// Source.
	Host int64 `yaml:"Host,omitempty"`
	// Source is the entity whose segments are copied.
	Source int64 `yaml:"Source"`
	// Target is the entity that takes Source's place.
	Target int64 `yaml:"Target"`
	// DupeIndex numbers duplicate placements of one source from 0. It is
	// -1 for the main placement.
	DupeIndex int `yaml:"DupeIndex"`
	// NewEvent is the id of an event to create from the host event.
	// 0 rewrites the host event in place.
	NewEvent int64 `yaml:"NewEvent,omitempty"`
	// Encounter marks a single boss encounter, as opposed to a repeatable
	// miniboss.
	Encounter bool `yaml:"Encounter,omitempty"`
	// Moved marks a target that was physically relocated.
	Moved bool `yaml:"Moved,omitempty"`
	// Reloc maps further source ids (helpers, flags, regions) to their
	// target counterparts.
	Reloc map[int64]int64 `yaml:"Reloc,omitempty"`
}

// UnmarshalYAML defaults DupeIndex to -1.
func (p *Placement) UnmarshalYAML(node *yaml.Node) error {
	type raw Placement
	r := raw{DupeIndex: -1}
	if err := node.Decode(&r); err != nil {
		return err
	}
	*p = Placement(r)
	return nil
}

// HostEntity returns Host, or Source when Host is unset.
func (p *Placement) HostEntity() int64 {
	if p.Host != 0 {
		return p.Host
	}
	return p.Source
}

// IsDupe reports whether this is a duplicate placement.
func (p *Placement) IsDupe() bool {
	return p.DupeIndex >= 0
}

// OutputEvent returns the id of the event the placement writes.
func (p *Placement) OutputEvent() int64 {
	if p.NewEvent != 0 {
		return p.NewEvent
	}
	return p.Event
}

// Clone returns a deep copy.
func (p *Placement) Clone() *Placement {
	if p == nil {
		return nil
	}
	c := *p
	if p.Reloc != nil {
		c.Reloc = make(map[int64]int64, len(p.Reloc))
		for k, v := range p.Reloc {
			c.Reloc[k] = v
		}
	}
	return &c
}

// PlacementsFor returns the placements whose host event is in mapName,
// in document order.
func (a *Assignment) PlacementsFor(mapName string) []*Placement {
	var out []*Placement
	for _, p := range a.Enemies {
		if p.Map == mapName {
			out = append(out, p)
		}
	}
	return out
}

// LoadAssignment reads an assignment document from disk.
func LoadAssignment(path string) (*Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := ParseAssignment(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ParseAssignment validates and decodes an assignment document.
func ParseAssignment(data []byte) (*Assignment, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Assignment{}, nil
	}
	if err := validateDocument(data, "#Assignment"); err != nil {
		return nil, err
	}
	a := &Assignment{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(a); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Errors: []ValidationError{{Field: "document", Message: err.Error(), Code: ErrDecode}}}
	}
	if errs := ValidateAssignment(a); len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}
	return a, nil
}

// ValidateAssignment checks that placements do not write the same event
// twice.
func ValidateAssignment(a *Assignment) []ValidationError {
	var errs []ValidationError
	written := make(map[string]map[int64]int)
	for i, p := range a.Enemies {
		field := fmt.Sprintf("Enemies[%d]", i)
		if p.Source == 0 || p.Target == 0 {
			errs = append(errs, ValidationError{Field: field, Message: "Source and Target are required", Code: ErrPlacement})
		}
		if p.NewEvent == 0 && p.IsDupe() {
			errs = append(errs, ValidationError{Field: field + ".NewEvent", Message: "a duplicate placement needs its own event", Code: ErrPlacement})
		}
		if written[p.Map] == nil {
			written[p.Map] = make(map[int64]int)
		}
		if prev, ok := written[p.Map][p.OutputEvent()]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("event %d in %s is already written by Enemies[%d]", p.OutputEvent(), p.Map, prev),
				Code:    ErrPlacement,
			})
			continue
		}
		written[p.Map][p.OutputEvent()] = i
	}
	for _, entity := range sortedIDs(a.Dupes) {
		for j, id := range a.Dupes[entity] {
			if id == 0 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Dupes[%d][%d]", entity, j),
					Message: "duplicate id must be nonzero",
					Code:    ErrPlacement,
				})
			}
		}
	}
	return errs
}

func sortedIDs[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ItemFlagKeys returns the remapped item flags, sorted.
func (a *Assignment) ItemFlagKeys() []int64 {
	return sortedIDs(a.ItemFlags)
}
