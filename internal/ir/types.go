package ir

import "fmt"

// Instruction is one raw instruction record: an operation identity
// (bank + id) and its packed argument bytes.
type Instruction struct {
	Bank    int32  `json:"bank"`
	ID      int32  `json:"id"`
	ArgData []byte `json:"args"` // hex-encoded by the script container
}

// Key returns the operation identity as "bank[id]".
func (i *Instruction) Key() string {
	return fmt.Sprintf("%d[%02d]", i.Bank, i.ID)
}

// Clone returns a deep copy of the instruction.
func (i *Instruction) Clone() *Instruction {
	return &Instruction{
		Bank:    i.Bank,
		ID:      i.ID,
		ArgData: append([]byte(nil), i.ArgData...),
	}
}

// Parameter is one entry of an event's parameter table.
//
// When the event is started, the runtime copies ByteCount bytes from the
// initializer's argument block at SourceStartByte into the argument bytes
// of instruction InstrIndex at TargetStartByte. The placeholder token
// X<SourceStartByte>_<ByteCount> denotes such a slot in command text.
type Parameter struct {
	InstrIndex      int64 `json:"instr_index"`
	TargetStartByte int64 `json:"target_start_byte"`
	SourceStartByte int64 `json:"source_start_byte"`
	ByteCount       int   `json:"byte_count"`
}

// Token returns the placeholder token for this parameter.
func (p Parameter) Token() string {
	return fmt.Sprintf("X%d_%d", p.SourceStartByte, p.ByteCount)
}

// RestBehavior is an event's behavior when the player rests.
type RestBehavior uint8

const (
	RestDefault RestBehavior = iota
	RestRestart
	RestEnd
)

var restNames = map[RestBehavior]string{
	RestDefault: "Default",
	RestRestart: "Restart",
	RestEnd:     "End",
}

func (r RestBehavior) String() string {
	if s, ok := restNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RestBehavior(%d)", uint8(r))
}

// ParseRestBehavior converts a rest behavior name to its value.
// The empty string is Default.
func ParseRestBehavior(s string) (RestBehavior, error) {
	if s == "" {
		return RestDefault, nil
	}
	for r, name := range restNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rest behavior %q", s)
}

// Event is an ordered, mutable sequence of instructions.
//
// INVARIANT: instruction order encodes control flow. Labels and gotos
// reference positions; inserting or removing instructions does not renumber
// them, which is the caller's responsibility.
type Event struct {
	ID           int64          `json:"id"`
	Rest         RestBehavior   `json:"rest"`
	Instructions []*Instruction `json:"instructions"`
	Parameters   []Parameter    `json:"parameters"`
}

// Clone returns a deep copy of the event. Instructions are cloned, so the
// copy shares no instruction identity with the original.
func (e *Event) Clone() *Event {
	out := &Event{
		ID:           e.ID,
		Rest:         e.Rest,
		Instructions: make([]*Instruction, len(e.Instructions)),
		Parameters:   append([]Parameter(nil), e.Parameters...),
	}
	for i, instr := range e.Instructions {
		out.Instructions[i] = instr.Clone()
	}
	return out
}

// Script is the set of events of one named script unit ("map").
type Script struct {
	Map    string   `json:"map"`
	Events []*Event `json:"events"`
}

// Event returns the event with the given id, or nil.
func (s *Script) Event(id int64) *Event {
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

// Replace swaps the event with the same id for ev, or appends ev if there
// is none.
func (s *Script) Replace(ev *Event) {
	for i, existing := range s.Events {
		if existing.ID == ev.ID {
			s.Events[i] = ev
			return
		}
	}
	s.Events = append(s.Events, ev)
}

// MaxEventID returns the largest event id in the script, or 0.
func (s *Script) MaxEventID() int64 {
	var max int64
	for _, ev := range s.Events {
		if ev.ID > max {
			max = ev.ID
		}
	}
	return max
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	out := &Script{Map: s.Map, Events: make([]*Event, len(s.Events))}
	for i, ev := range s.Events {
		out.Events[i] = ev.Clone()
	}
	return out
}
