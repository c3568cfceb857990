package ir

import "fmt"

// ParamSnapshot keeps an event's parameter table attached to instruction
// identity while the instruction list is mutated.
//
// Parameter entries address instructions by position. An edit that inserts
// or removes instructions invalidates those positions, so every mutation is
// bracketed:
//
//	snap, err := ir.Preprocess(ev)
//	if err != nil { ... }
//	defer snap.Postprocess()
//	// mutate ev.Instructions; call snap.AddParameters for new instructions
//
// Postprocess rebuilds ev.Parameters from the current instruction order.
// Entries of removed instructions are dropped.
type ParamSnapshot struct {
	ev      *Event
	byInstr map[*Instruction][]Parameter
}

// Preprocess captures ev's parameter table keyed by instruction identity.
// An entry addressing an instruction the event does not have is an error;
// Postprocess would otherwise lose it.
func Preprocess(ev *Event) (*ParamSnapshot, error) {
	snap := &ParamSnapshot{
		ev:      ev,
		byInstr: make(map[*Instruction][]Parameter),
	}
	for _, p := range ev.Parameters {
		if p.InstrIndex < 0 || p.InstrIndex >= int64(len(ev.Instructions)) {
			return nil, fmt.Errorf("event %d: parameter %s references instruction %d of %d",
				ev.ID, p.Token(), p.InstrIndex, len(ev.Instructions))
		}
		instr := ev.Instructions[p.InstrIndex]
		snap.byInstr[instr] = append(snap.byInstr[instr], p)
	}
	return snap, nil
}

// Params returns the parameter entries of instr. InstrIndex of the returned
// entries is not meaningful until Postprocess.
func (s *ParamSnapshot) Params(instr *Instruction) []Parameter {
	return s.byInstr[instr]
}

// AddParameters attaches parameter entries to an instruction that is being
// inserted into the event.
func (s *ParamSnapshot) AddParameters(instr *Instruction, ps []Parameter) {
	if len(ps) == 0 {
		return
	}
	s.byInstr[instr] = append(s.byInstr[instr], ps...)
}

// Postprocess re-derives the event's parameter table from the current
// instruction order. Safe to call more than once.
func (s *ParamSnapshot) Postprocess() {
	params := []Parameter{}
	for i, instr := range s.ev.Instructions {
		for _, p := range s.byInstr[instr] {
			p.InstrIndex = int64(i)
			params = append(params, p)
		}
	}
	s.ev.Parameters = params
}

// ParamsByInstruction groups ev's parameter table by instruction index.
func ParamsByInstruction(ev *Event) map[int][]Parameter {
	out := make(map[int][]Parameter)
	for _, p := range ev.Parameters {
		out[int(p.InstrIndex)] = append(out[int(p.InstrIndex)], p)
	}
	return out
}
