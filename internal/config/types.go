// Package config defines the declarative event configuration document:
// new events to synthesize, existing events to edit, initializers to add,
// and the enemy and item templates with their segment libraries.
//
// Documents are YAML with PascalCase keys. Load validates the raw document
// against an embedded CUE schema before decoding, and Validate runs the
// semantic checks that need the decoded form.
//
// Every type with owned collections has a total Clone; template expansion
// clones per duplicate target and must never share mutable state between
// targets.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EventConfig is the root of a configuration document.
type EventConfig struct {
	// NewEvents lists, per map, events to synthesize.
	NewEvents map[string][]*NewEvent `yaml:"NewEvents"`

	// ExistingEvents lists, per map, events to name and edit, in document
	// order.
	ExistingEvents map[string]ExistingEvents `yaml:"ExistingEvents"`

	// Initialize lists, per map, initializers to append to event 0.
	Initialize map[string][]*AddInitializer `yaml:"Initialize"`

	// DefaultSegments are merged by type into every enemy template's
	// segments when the template does not declare that type itself.
	DefaultSegments []*CommandSegment `yaml:"DefaultSegments"`

	ItemEvents  []*EventSpec `yaml:"ItemEvents"`
	EnemyEvents []*EventSpec `yaml:"EnemyEvents"`
}

// Maps returns the sorted set of map names the document mentions.
func (c *EventConfig) Maps() []string {
	seen := make(map[string]bool)
	for m := range c.NewEvents {
		seen[m] = true
	}
	for m := range c.ExistingEvents {
		seen[m] = true
	}
	for m := range c.Initialize {
		seen[m] = true
	}
	for _, spec := range c.EnemyEvents {
		if spec.Map != "" {
			seen[spec.Map] = true
		}
	}
	for _, spec := range c.ItemEvents {
		if spec.Map != "" {
			seen[spec.Map] = true
		}
	}
	return sortedKeys(seen)
}

// Base holds the fields shared by every event-level construct.
type Base struct {
	// Name is our name for the event, used by AddInitializer.
	Name    string `yaml:"Name,omitempty"`
	Comment string `yaml:"Comment,omitempty"`
	// If is a boolean expression over Options; the construct is skipped
	// when it evaluates to false.
	If string `yaml:"If,omitempty"`
}

// NewEvent is an event to add to a map.
type NewEvent struct {
	Base `yaml:",inline"`

	// ID defaults to one past the largest event id in the map.
	ID        int64            `yaml:"ID,omitempty"`
	Rest      string           `yaml:"Rest,omitempty"`
	Arguments []*EventArgument `yaml:"Arguments,omitempty"`
	Commands  []string         `yaml:"Commands"`
}

// Clone returns a deep copy.
func (e *NewEvent) Clone() *NewEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Arguments = cloneEach(e.Arguments, (*EventArgument).Clone)
	c.Commands = cloneStrings(e.Commands)
	return &c
}

// EventArgument names a byte range of a new event's parameters.
type EventArgument struct {
	Base `yaml:",inline"`

	// Width in bytes, 1 to 4.
	Width int `yaml:"Width,omitempty"`
}

// Clone returns a copy.
func (a *EventArgument) Clone() *EventArgument {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// UnmarshalYAML accepts a bare name as a 4-byte argument.
func (a *EventArgument) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = EventArgument{Base: Base{Name: node.Value}, Width: 4}
		return nil
	}
	type raw EventArgument
	r := raw{Width: 4}
	if err := node.Decode(&r); err != nil {
		return err
	}
	*a = EventArgument(r)
	return nil
}

// ExistingEvent names or edits an event already present in a map.
type ExistingEvent struct {
	Base `yaml:",inline"`

	// ID comes from the document key.
	ID    int64        `yaml:"-"`
	Edits []*EventEdit `yaml:"Edits,omitempty"`
}

// Clone returns a deep copy.
func (e *ExistingEvent) Clone() *ExistingEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Edits = cloneEach(e.Edits, (*EventEdit).Clone)
	return &c
}

// ExistingEvents is a map's existing-event entries in document order.
type ExistingEvents []*ExistingEvent

// UnmarshalYAML decodes a mapping of event id to ExistingEvent, keeping
// key order.
func (l *ExistingEvents) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: ExistingEvents entry must be a mapping of event id to event", node.Line)
	}
	out := make(ExistingEvents, 0, len(node.Content)/2)
	seen := make(map[int64]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var id int64
		if err := node.Content[i].Decode(&id); err != nil {
			return fmt.Errorf("line %d: event id: %w", node.Content[i].Line, err)
		}
		if seen[id] {
			return fmt.Errorf("line %d: duplicate event id %d", node.Content[i].Line, id)
		}
		seen[id] = true
		ev := &ExistingEvent{}
		if node.Content[i+1].Tag != "!!null" {
			if err := node.Content[i+1].Decode(ev); err != nil {
				return err
			}
		}
		ev.ID = id
		out = append(out, ev)
	}
	*l = out
	return nil
}

// RemoveKind selects which matches an edit removes.
type RemoveKind int

const (
	RemoveNone RemoveKind = iota
	RemoveFirst
	RemoveAll
)

func (k RemoveKind) String() string {
	switch k {
	case RemoveFirst:
		return "First"
	case RemoveAll:
		return "All"
	default:
		return "None"
	}
}

// UnmarshalYAML parses None, First or All.
func (k *RemoveKind) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(node.Value) {
	case "", "none":
		*k = RemoveNone
	case "first":
		*k = RemoveFirst
	case "all":
		*k = RemoveAll
	default:
		return fmt.Errorf("line %d: invalid Remove %q (want None, First, or All)", node.Line, node.Value)
	}
	return nil
}

// MarshalYAML writes the kind name.
func (k RemoveKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// EventEdit is one mutation of an existing event. Exactly one of Set,
// Remove, AddBefore and AddAfter may be given.
type EventEdit struct {
	// Match selects the instruction. Absent means the whole event is one
	// region.
	Match *InstructionMatcher `yaml:"Match,omitempty"`
	// MatchLength is the region length, default 1.
	MatchLength int        `yaml:"MatchLength,omitempty"`
	Set         *SetEdit   `yaml:"Set,omitempty"`
	Remove      RemoveKind `yaml:"Remove,omitempty"`
	AddBefore   []string   `yaml:"AddBefore,omitempty"`
	AddAfter    []string   `yaml:"AddAfter,omitempty"`
}

// UnmarshalYAML applies the MatchLength default.
func (e *EventEdit) UnmarshalYAML(node *yaml.Node) error {
	type raw EventEdit
	r := raw{MatchLength: 1}
	if err := node.Decode(&r); err != nil {
		return err
	}
	*e = EventEdit(r)
	return nil
}

// Kinds lists the mutation kinds set on the edit.
func (e *EventEdit) Kinds() []string {
	var kinds []string
	if e.Set != nil {
		kinds = append(kinds, "Set")
	}
	if e.Remove != RemoveNone {
		kinds = append(kinds, "Remove")
	}
	if len(e.AddBefore) > 0 {
		kinds = append(kinds, "AddBefore")
	}
	if len(e.AddAfter) > 0 {
		kinds = append(kinds, "AddAfter")
	}
	return kinds
}

// Clone returns a deep copy.
func (e *EventEdit) Clone() *EventEdit {
	if e == nil {
		return nil
	}
	c := *e
	c.Match = e.Match.Clone()
	c.Set = e.Set.Clone()
	c.AddBefore = cloneStrings(e.AddBefore)
	c.AddAfter = cloneStrings(e.AddAfter)
	return &c
}

// InstructionMatcher is a conjunction of an initializer predicate and a
// literal instruction predicate. Either may be absent.
type InstructionMatcher struct {
	Init        *InitMatcher `yaml:"Init,omitempty"`
	Instruction string       `yaml:"Instruction,omitempty"`
}

// UnmarshalYAML accepts a bare string as a literal instruction.
func (m *InstructionMatcher) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*m = InstructionMatcher{Instruction: node.Value}
		return nil
	}
	type raw InstructionMatcher
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*m = InstructionMatcher(r)
	return nil
}

// String describes the matcher for diagnostics.
func (m *InstructionMatcher) String() string {
	if m == nil {
		return "<whole event>"
	}
	var parts []string
	if m.Init != nil {
		parts = append(parts, m.Init.String())
	}
	if m.Instruction != "" {
		parts = append(parts, m.Instruction)
	}
	if len(parts) == 0 {
		return "<any>"
	}
	return strings.Join(parts, " && ")
}

// Clone returns a deep copy.
func (m *InstructionMatcher) Clone() *InstructionMatcher {
	if m == nil {
		return nil
	}
	c := *m
	c.Init = m.Init.Clone()
	return &c
}

// InitMatcher matches initializer instructions.
type InitMatcher struct {
	// Index is the initializer's first argument (its slot).
	Index  *int64 `yaml:"Index,omitempty"`
	Callee *int64 `yaml:"Callee,omitempty"`
	// Arguments match the arguments passed to the callee by position; nil
	// entries match any value.
	Arguments []*int64 `yaml:"Arguments,omitempty"`
}

// UnmarshalYAML accepts a bare integer as a callee constraint.
func (m *InitMatcher) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var callee int64
		if err := node.Decode(&callee); err != nil {
			return fmt.Errorf("line %d: Init shorthand must be an event id: %w", node.Line, err)
		}
		*m = InitMatcher{Callee: &callee}
		return nil
	}
	type raw InitMatcher
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*m = InitMatcher(r)
	return nil
}

func (m *InitMatcher) String() string {
	var b strings.Builder
	b.WriteString("Init(")
	if m.Index != nil {
		fmt.Fprintf(&b, "index=%d ", *m.Index)
	}
	if m.Callee != nil {
		fmt.Fprintf(&b, "callee=%d ", *m.Callee)
	}
	if len(m.Arguments) > 0 {
		args := make([]string, len(m.Arguments))
		for i, a := range m.Arguments {
			if a == nil {
				args[i] = "_"
			} else {
				args[i] = fmt.Sprint(*a)
			}
		}
		fmt.Fprintf(&b, "args=[%s]", strings.Join(args, ","))
	}
	return strings.TrimSpace(b.String()) + ")"
}

// Clone returns a deep copy.
func (m *InitMatcher) Clone() *InitMatcher {
	if m == nil {
		return nil
	}
	c := InitMatcher{Index: clonePtr(m.Index), Callee: clonePtr(m.Callee)}
	if m.Arguments != nil {
		c.Arguments = make([]*int64, len(m.Arguments))
		for i, a := range m.Arguments {
			c.Arguments[i] = clonePtr(a)
		}
	}
	return &c
}

// SetEdit writes a value into one argument of the matched instruction.
type SetEdit struct {
	Param InstructionParameter `yaml:"Param"`
	Value int64                `yaml:"Value"`
}

// Clone returns a deep copy.
func (s *SetEdit) Clone() *SetEdit {
	if s == nil {
		return nil
	}
	return &SetEdit{Param: s.Param.Clone(), Value: s.Value}
}

// InstructionParameter locates an argument: exactly one of a positional
// index, a documented argument name, or an initializer argument index.
type InstructionParameter struct {
	Index   *int   `yaml:"Index,omitempty"`
	Name    string `yaml:"Name,omitempty"`
	InitArg *int   `yaml:"InitArg,omitempty"`
}

// UnmarshalYAML accepts an integer as an index and a string as a name.
func (p *InstructionParameter) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!int" {
			var idx int
			if err := node.Decode(&idx); err != nil {
				return err
			}
			*p = InstructionParameter{Index: &idx}
			return nil
		}
		*p = InstructionParameter{Name: node.Value}
		return nil
	}
	type raw InstructionParameter
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*p = InstructionParameter(r)
	return nil
}

// Forms counts how many locator forms are set.
func (p InstructionParameter) Forms() int {
	n := 0
	if p.Index != nil {
		n++
	}
	if p.Name != "" {
		n++
	}
	if p.InitArg != nil {
		n++
	}
	return n
}

func (p InstructionParameter) String() string {
	switch {
	case p.Forms() > 1:
		return "<ambiguous parameter>"
	case p.Index != nil:
		return fmt.Sprintf("index %d", *p.Index)
	case p.Name != "":
		return fmt.Sprintf("%q", p.Name)
	case p.InitArg != nil:
		return fmt.Sprintf("init arg %d", *p.InitArg)
	}
	return "<no parameter>"
}

// Clone returns a deep copy.
func (p InstructionParameter) Clone() InstructionParameter {
	return InstructionParameter{Index: clonePtr(p.Index), Name: p.Name, InitArg: clonePtr(p.InitArg)}
}

// AddInitializer appends an initializer for an event, by id or by name.
type AddInitializer struct {
	ID        *int64  `yaml:"ID,omitempty"`
	Name      string  `yaml:"Name,omitempty"`
	Arguments []int64 `yaml:"Arguments,omitempty"`
}

// Clone returns a deep copy.
func (a *AddInitializer) Clone() *AddInitializer {
	if a == nil {
		return nil
	}
	return &AddInitializer{ID: clonePtr(a.ID), Name: a.Name, Arguments: append([]int64(nil), a.Arguments...)}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneEach[T any](s []*T, clone func(*T) *T) []*T {
	if s == nil {
		return nil
	}
	out := make([]*T, len(s))
	for i, v := range s {
		out[i] = clone(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
