package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EventSpec attaches enemy or item templates to one event.
type EventSpec struct {
	ID      int64  `yaml:"ID"`
	Map     string `yaml:"Map,omitempty"`
	Comment string `yaml:"Comment,omitempty"`
	// Auto marks generated specs that a config generator may overwrite.
	Auto bool `yaml:"Auto,omitempty"`
	// Dupe is shorthand for the Dupe.Type of every template without one.
	Dupe string `yaml:"Dupe,omitempty"`
	// Entities lists every entity the event mentions, space separated.
	Entities string `yaml:"Entities,omitempty"`

	Template     []*EnemyTemplate `yaml:"Template,omitempty"`
	ItemTemplate []*ItemTemplate  `yaml:"ItemTemplate,omitempty"`
}

// Clone returns a deep copy.
func (s *EventSpec) Clone() *EventSpec {
	if s == nil {
		return nil
	}
	c := *s
	c.Template = cloneEach(s.Template, (*EnemyTemplate).Clone)
	c.ItemTemplate = cloneEach(s.ItemTemplate, (*ItemTemplate).Clone)
	return &c
}

// DupeKind returns the dupe type of t, falling back to the spec's Dupe
// shorthand when t does not set one. A nil spec has no shorthand.
func (s *EventSpec) DupeKind(t *EnemyTemplate) string {
	if (t.Dupe == nil || t.Dupe.Type == "") && s != nil && s.Dupe != "" {
		return s.Dupe
	}
	return t.Dupe.Kind()
}

// EntityList parses Entities.
func (s *EventSpec) EntityList() ([]int64, error) {
	return ParseIDs(s.Entities)
}

// Enemy template types.
const (
	TemplateChr      = "chr"
	TemplateMultiChr = "multichr"
	TemplateLoc      = "loc"
	TemplateStart    = "start"
	TemplateEnd      = "end"
	TemplateRemove   = "remove"
	TemplateSegment  = "segment"
	TemplateDefault  = "default"
)

// EnemyTemplate is an edit recipe for one kind of enemy event.
type EnemyTemplate struct {
	// Type is one of chr, multichr, loc, start, end, remove, segment,
	// default. A trailing qualifier after a space is ignored.
	Type    string `yaml:"Type"`
	Comment string `yaml:"Comment,omitempty"`
	// Entity is the authored entity this template is about.
	Entity int64 `yaml:"Entity,omitempty"`
	// Entities lists every entity the template may touch, space separated.
	Entities string `yaml:"Entities,omitempty"`
	Dupe     *Dupe  `yaml:"Dupe,omitempty"`
	// Regions used by the event as a whole.
	Regions []string `yaml:"Regions,omitempty"`

	Add        []*EventAddCommand `yaml:"Add,omitempty"`
	Remove     string             `yaml:"Remove,omitempty"`
	Removes    []string           `yaml:"Removes,omitempty"`
	RemoveDupe string             `yaml:"RemoveDupe,omitempty"`
	// Replace is "<old command> -> <new command>".
	Replace string `yaml:"Replace,omitempty"`
	// NewEvent rewrites the entire event before other edits.
	NewEvent []string          `yaml:"NewEvent,omitempty"`
	Segments []*CommandSegment `yaml:"Segments,omitempty"`

	// ArgEntities lists the initializer arguments carrying entity ids, as
	// space-separated "X<src>_4" tokens. When ArgEntities or ArgFlags is
	// set, only those arguments are relocated; otherwise every argument
	// equal to a relocated id is.
	ArgEntities string `yaml:"ArgEntities,omitempty"`
	// ArgFlags lists the initializer arguments carrying event flags.
	ArgFlags string `yaml:"ArgFlags,omitempty"`
}

// BaseType returns Type without any qualifier.
func (t *EnemyTemplate) BaseType() string {
	base, _, _ := strings.Cut(strings.TrimSpace(t.Type), " ")
	return base
}

// IsDefault reports whether the template asks for no edits.
func (t *EnemyTemplate) IsDefault() bool {
	return t.BaseType() == TemplateDefault ||
		(t.Entity == 0 && t.Dupe == nil && t.Remove == "" && t.RemoveDupe == "" &&
			t.Replace == "" && t.Add == nil && t.NewEvent == nil && t.Removes == nil &&
			t.Segments == nil && t.Regions == nil && t.ArgEntities == "" && t.ArgFlags == "")
}

// ArgTokens returns the ArgEntities and ArgFlags tokens.
func (t *EnemyTemplate) ArgTokens() []string {
	return append(strings.Fields(t.ArgEntities), strings.Fields(t.ArgFlags)...)
}

// Clone returns a deep copy, including Dupe.
func (t *EnemyTemplate) Clone() *EnemyTemplate {
	if t == nil {
		return nil
	}
	c := *t
	c.Dupe = t.Dupe.Clone()
	c.Regions = cloneStrings(t.Regions)
	c.Add = cloneEach(t.Add, (*EventAddCommand).Clone)
	c.Removes = cloneStrings(t.Removes)
	c.NewEvent = cloneStrings(t.NewEvent)
	c.Segments = cloneEach(t.Segments, (*CommandSegment).Clone)
	return &c
}

// RemoveCommands returns Remove and Removes as one list.
func (t *EnemyTemplate) RemoveCommands() []string {
	var out []string
	if t.Remove != "" {
		out = append(out, t.Remove)
	}
	return append(out, t.Removes...)
}

// SegmentByType returns the first segment of the given type.
func (t *EnemyTemplate) SegmentByType(typ string) *CommandSegment {
	for _, s := range t.Segments {
		if s.Type == typ {
			return s
		}
	}
	return nil
}

// Segment types.
const (
	SegDead        = "dead"
	SegDisable     = "disable"
	SegSetup       = "setup"
	SegAltSetup    = "altsetup"
	SegFirstSetup  = "firstsetup"
	SegSecondSetup = "secondsetup"
	SegFirstStart  = "firststart"
	SegSecondStart = "secondstart"
	SegStart       = "start"
	SegQuickStart  = "quickstart"
	SegHealthbar   = "healthbar"
	SegUnhealthbar = "unhealthbar"
	SegEnd         = "end"
	SegEndPhase    = "endphase"
	SegRemove      = "remove"
)

// SegmentTypes lists every segment type in the order segments are
// conventionally laid out in an event.
var SegmentTypes = []string{
	SegDead, SegDisable, SegSetup, SegAltSetup, SegFirstSetup, SegSecondSetup,
	SegFirstStart, SegSecondStart, SegStart, SegQuickStart, SegHealthbar,
	SegUnhealthbar, SegEnd, SegEndPhase, SegRemove,
}

// IsSegmentType reports whether s is a known segment type.
func IsSegmentType(s string) bool {
	for _, t := range SegmentTypes {
		if t == s {
			return true
		}
	}
	return false
}

// CommandSegment is a named, anchored span of commands.
type CommandSegment struct {
	Type string `yaml:"Type"`
	// IgnoreMatch places the segment at its Start anchor even when the
	// anchor is ambiguous, instead of requiring a unique match.
	IgnoreMatch bool `yaml:"IgnoreMatch,omitempty"`
	// PreSegment restricts the Start search to after the named segment.
	PreSegment string `yaml:"PreSegment,omitempty"`
	// Start may list several commands separated by ";" which must appear
	// consecutively.
	Start string `yaml:"Start,omitempty"`
	End   string `yaml:"End,omitempty"`
	// Regions referenced by the segment's commands.
	Regions []string `yaml:"Regions,omitempty"`

	EncounterOnly    []string `yaml:"EncounterOnly,omitempty"`
	NonEncounterOnly []string `yaml:"NonEncounterOnly,omitempty"`
	MoveOnly         []string `yaml:"MoveOnly,omitempty"`
	NonMoveOnly      []string `yaml:"NonMoveOnly,omitempty"`

	// Params lists the "X<src>_<width>" arguments of the source event that
	// the segment's commands read, space separated. They are replaced by
	// the values the source event is initialized with before the segment
	// is moved into another event.
	Params string `yaml:"Params,omitempty"`

	Commands []string `yaml:"Commands,omitempty"`
}

// ParamTokens parses Params.
func (s *CommandSegment) ParamTokens() []string {
	return strings.Fields(s.Params)
}

// StartCommands splits Start into its consecutive anchor commands.
func (s *CommandSegment) StartCommands() []string {
	return splitCommands(s.Start)
}

// Clone returns a deep copy.
func (s *CommandSegment) Clone() *CommandSegment {
	if s == nil {
		return nil
	}
	c := *s
	c.Regions = cloneStrings(s.Regions)
	c.EncounterOnly = cloneStrings(s.EncounterOnly)
	c.NonEncounterOnly = cloneStrings(s.NonEncounterOnly)
	c.MoveOnly = cloneStrings(s.MoveOnly)
	c.NonMoveOnly = cloneStrings(s.NonMoveOnly)
	c.Commands = cloneStrings(s.Commands)
	return &c
}

// Dupe types.
const (
	DupeNone    = "none"
	DupeRewrite = "rewrite"
	DupeReplace = "replace"
)

// Dupe configures how a template behaves when its entity is duplicated
// onto several targets.
type Dupe struct {
	// Type is none, rewrite, or replace. Empty means none.
	Type string `yaml:"Type,omitempty"`
	// Entity lists extra source entities to relocate, space separated.
	Entity string `yaml:"Entity,omitempty"`
	// Condition lists condition groups whose and/or logic would collide
	// between duplicates, space separated (e.g. "OR_01 AND_02").
	Condition string `yaml:"Condition,omitempty"`
}

// Clone returns a copy.
func (d *Dupe) Clone() *Dupe {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Kind returns Type with the empty default resolved.
func (d *Dupe) Kind() string {
	if d == nil || d.Type == "" {
		return DupeNone
	}
	return d.Type
}

// ConditionGroups parses Condition.
func (d *Dupe) ConditionGroups() []string {
	if d == nil {
		return nil
	}
	return strings.Fields(d.Condition)
}

// Item template types.
const (
	ItemTypeItem    = "item"
	ItemTypeAny     = "any"
	ItemTypeLoc     = "loc"
	ItemTypeDefault = "default"
)

// ItemTemplate is an edit recipe for an event that awards an item.
type ItemTemplate struct {
	Type    string `yaml:"Type"`
	Comment string `yaml:"Comment,omitempty"`
	// EventFlag lists flags to rewrite when their item moves, space separated.
	EventFlag string `yaml:"EventFlag,omitempty"`
	// EventFlagArg names the initializer argument carrying the flag, as
	// "X<src>_4". A second token names an argument whose value is copied
	// into the first.
	EventFlagArg string `yaml:"EventFlagArg,omitempty"`
	// RemoveArg names an initializer argument to zero.
	RemoveArg string             `yaml:"RemoveArg,omitempty"`
	Entity    string             `yaml:"Entity,omitempty"`
	Remove    string             `yaml:"Remove,omitempty"`
	Replace   string             `yaml:"Replace,omitempty"`
	Add       []*EventAddCommand `yaml:"Add,omitempty"`
}

// Clone returns a deep copy.
func (t *ItemTemplate) Clone() *ItemTemplate {
	if t == nil {
		return nil
	}
	c := *t
	c.Add = cloneEach(t.Add, (*EventAddCommand).Clone)
	return &c
}

// IsDefault reports whether the template asks for no edits.
func (t *ItemTemplate) IsDefault() bool {
	return t.Type == ItemTypeDefault ||
		(t.EventFlag == "" && t.EventFlagArg == "" && t.RemoveArg == "" &&
			t.Remove == "" && t.Replace == "" && t.Add == nil)
}

// EventAddCommand inserts a command into a templated event, after or
// before an anchor command, or at the end.
type EventAddCommand struct {
	Command string `yaml:"Command"`
	Before  string `yaml:"Before,omitempty"`
	After   string `yaml:"After,omitempty"`
}

// Clone returns a copy.
func (a *EventAddCommand) Clone() *EventAddCommand {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// EventFlagArgs returns the destination and optional source tokens of
// EventFlagArg.
func (t *ItemTemplate) EventFlagArgs() (dst, src string) {
	f := strings.Fields(t.EventFlagArg)
	switch len(f) {
	case 0:
		return "", ""
	case 1:
		return f[0], ""
	}
	return f[0], f[1]
}

// ParseIDs parses a space-separated list of integer ids.
func ParseIDs(s string) ([]int64, error) {
	var out []int64
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

// SplitReplace parses "<old> -> <new>".
func SplitReplace(s string) (from, to string, err error) {
	from, to, ok := strings.Cut(s, "->")
	if !ok {
		return "", "", fmt.Errorf("replace %q: expected \"<old> -> <new>\"", s)
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return "", "", fmt.Errorf("replace %q: both sides are required", s)
	}
	return from, to, nil
}

func splitCommands(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
