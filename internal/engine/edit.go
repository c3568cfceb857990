package engine

import (
	"strings"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/ir"
)

// Result describes what one applied edit did.
type Result struct {
	// Kind is Set, RemoveFirst, RemoveAll, AddBefore or AddAfter.
	Kind string
	// Index is the match index (for RemoveAll, the first removed index).
	Index int
	// Count is the number of instructions set, removed, or inserted.
	Count int
}

// editState is the applicator's per-edit state.
type editState int

const (
	stateSearch editState = iota
	stateApply
	stateDone
	stateExhausted
)

// Applicator applies EventEdits to events.
//
// Every mutation is bracketed by ir.Preprocess and Postprocess, so the
// event's parameter table stays consistent with its instruction order
// on every exit path, including errors.
type Applicator struct {
	cat *catalog.Catalog
}

// NewApplicator creates an Applicator.
func NewApplicator(cat *catalog.Catalog) *Applicator {
	return &Applicator{cat: cat}
}

// CheckEdit rejects edits that set more than one mutation kind, apply Set
// or Remove: All to a region, or have no mutation at all.
func CheckEdit(edit *config.EventEdit) error {
	kinds := edit.Kinds()
	switch {
	case len(kinds) > 1:
		return &PatchError{
			Code:    ErrCodeAmbiguousEdit,
			Message: "each edit may make only one change",
			Matcher: edit.Match.String(),
			Details: map[string]string{"kinds": strings.Join(kinds, ",")},
		}
	case len(kinds) == 0:
		return &PatchError{Code: ErrCodeAmbiguousEdit, Message: "edit makes no change", Matcher: edit.Match.String()}
	}
	if edit.Set != nil {
		return assertNoRegion(edit, "Set")
	}
	if edit.Remove == config.RemoveAll {
		return assertNoRegion(edit, "Remove: All")
	}
	return nil
}

func assertNoRegion(edit *config.EventEdit, action string) error {
	if wholeEvent(edit) || matchLength(edit) != 1 {
		return &PatchError{
			Code:    ErrCodeAmbiguousEdit,
			Message: "edit action " + action + " doesn't apply to a region",
			Matcher: edit.Match.String(),
		}
	}
	return nil
}

// wholeEvent reports whether edit has no matcher, or one that constrains
// nothing. Either way its region is the whole event.
func wholeEvent(edit *config.EventEdit) bool {
	return edit.Match == nil || (edit.Match.Init == nil && strings.TrimSpace(edit.Match.Instruction) == "")
}

func matchLength(edit *config.EventEdit) int {
	if edit.MatchLength == 0 {
		return 1
	}
	return edit.MatchLength
}

// Apply performs edit on ev.
//
// Remove: All removes every matching instruction. Every other kind
// scans front to back and applies its one mutation at the first match.
// An edit with no matcher treats the whole event as one region. Finding
// nothing is MATCH_NOT_FOUND.
func (a *Applicator) Apply(ev *ir.Event, edit *config.EventEdit) (Result, error) {
	if err := CheckEdit(edit); err != nil {
		return Result{}, err
	}
	m, err := CompileMatcher(a.cat, edit.Match)
	if err != nil {
		return Result{}, err
	}
	length := matchLength(edit)
	if wholeEvent(edit) {
		length = len(ev.Instructions)
	}

	snap, err := ir.Preprocess(ev)
	if err != nil {
		return Result{}, wrapError(ErrCodeUnresolvedParameter, err, "parameter table")
	}
	defer snap.Postprocess()

	if edit.Remove == config.RemoveAll {
		return a.removeAll(ev, snap, m)
	}

	state := stateSearch
	var res Result
	for i := 0; state == stateSearch; i++ {
		if i >= len(ev.Instructions) {
			state = stateExhausted
			break
		}
		if !Match(m, View(a.cat, ev.Instructions[i], snap.Params(ev.Instructions[i]))) {
			continue
		}
		state = stateApply
		res, err = a.mutate(ev, snap, i, length, edit)
		if err != nil {
			return res, err
		}
		state = stateDone
	}

	if state == stateExhausted {
		if wholeEvent(edit) && len(ev.Instructions) == 0 && (len(edit.AddBefore) > 0 || len(edit.AddAfter) > 0) {
			// whole-event region of an empty event: append
			return a.mutate(ev, snap, 0, 0, edit)
		}
		return Result{}, &PatchError{
			Code:    ErrCodeMatchNotFound,
			Message: "expected edit to match an instruction",
			Matcher: edit.Match.String(),
		}
	}
	return res, nil
}

// ApplyAt performs edit at a known instruction index without consulting
// its matcher. The region is edit.MatchLength instructions starting at
// index. AddBefore accepts index == len(ev.Instructions) to append.
func (a *Applicator) ApplyAt(ev *ir.Event, index int, edit *config.EventEdit) (Result, error) {
	kinds := edit.Kinds()
	if len(kinds) != 1 {
		return Result{}, &PatchError{Code: ErrCodeAmbiguousEdit, Message: "each edit must make exactly one change"}
	}
	if edit.Remove == config.RemoveAll {
		return Result{}, &PatchError{Code: ErrCodeAmbiguousEdit, Message: "Remove: All needs a matcher, not an index"}
	}
	length := matchLength(edit)
	if edit.Set != nil && length != 1 {
		return Result{}, &PatchError{Code: ErrCodeAmbiguousEdit, Message: "edit action Set doesn't apply to a region"}
	}
	limit := len(ev.Instructions)
	if len(edit.AddBefore) == 0 {
		limit--
	}
	if index < 0 || index > limit {
		return Result{}, NewError(ErrCodeMatchNotFound, "index %d out of range for event of %d instructions", index, len(ev.Instructions))
	}

	snap, err := ir.Preprocess(ev)
	if err != nil {
		return Result{}, wrapError(ErrCodeUnresolvedParameter, err, "parameter table")
	}
	defer snap.Postprocess()
	return a.mutate(ev, snap, index, length, edit)
}

func (a *Applicator) mutate(ev *ir.Event, snap *ir.ParamSnapshot, i, length int, edit *config.EventEdit) (Result, error) {
	switch {
	case edit.Set != nil:
		instr := ev.Instructions[i]
		in := View(a.cat, instr, snap.Params(instr))
		idx, err := in.ArgIndex(edit.Set.Param)
		if err != nil {
			return Result{}, err
		}
		if err := in.Decoded.Put(instr.ArgData, idx, edit.Set.Value); err != nil {
			return Result{}, wrapError(ErrCodeUnresolvedParameter, err, "set %s", edit.Set.Param)
		}
		return Result{Kind: "Set", Index: i, Count: 1}, nil

	case edit.Remove == config.RemoveFirst:
		if i+length > len(ev.Instructions) {
			return Result{}, NewError(ErrCodeMatchNotFound, "region of %d at index %d runs past the end of the event (%d instructions)", length, i, len(ev.Instructions))
		}
		ev.Instructions = append(ev.Instructions[:i], ev.Instructions[i+length:]...)
		return Result{Kind: "RemoveFirst", Index: i, Count: length}, nil

	case len(edit.AddBefore) > 0:
		instrs, err := a.parseAll(edit.AddBefore, snap)
		if err != nil {
			return Result{}, err
		}
		ev.Instructions = insertAt(ev.Instructions, i, instrs)
		return Result{Kind: "AddBefore", Index: i, Count: len(instrs)}, nil

	case len(edit.AddAfter) > 0:
		at := i + length
		if at > len(ev.Instructions) {
			return Result{}, NewError(ErrCodeMatchNotFound, "region of %d at index %d runs past the end of the event (%d instructions)", length, i, len(ev.Instructions))
		}
		instrs, err := a.parseAll(edit.AddAfter, snap)
		if err != nil {
			return Result{}, err
		}
		ev.Instructions = insertAt(ev.Instructions, at, instrs)
		return Result{Kind: "AddAfter", Index: i, Count: len(instrs)}, nil
	}
	return Result{}, &PatchError{Code: ErrCodeAmbiguousEdit, Message: "edit makes no change"}
}

func (a *Applicator) removeAll(ev *ir.Event, snap *ir.ParamSnapshot, m Matcher) (Result, error) {
	kept := make([]*ir.Instruction, 0, len(ev.Instructions))
	first, removed := -1, 0
	for i, instr := range ev.Instructions {
		if Match(m, View(a.cat, instr, snap.Params(instr))) {
			if first < 0 {
				first = i
			}
			removed++
			continue
		}
		kept = append(kept, instr)
	}
	if removed == 0 {
		return Result{}, &PatchError{
			Code:    ErrCodeMatchNotFound,
			Message: "expected Remove: All edit to match an instruction",
			Matcher: m.String(),
		}
	}
	ev.Instructions = kept
	return Result{Kind: "RemoveAll", Index: first, Count: removed}, nil
}

// parseAll parses every command before any is inserted, registering the
// parameters of each with snap.
func (a *Applicator) parseAll(commands []string, snap *ir.ParamSnapshot) ([]*ir.Instruction, error) {
	instrs := make([]*ir.Instruction, 0, len(commands))
	params := make([][]ir.Parameter, 0, len(commands))
	for _, text := range commands {
		instr, ps, err := a.cat.ParseCommand(text)
		if err != nil {
			return nil, wrapError(ErrCodeInvalidCommand, err, "command %q", text)
		}
		instrs = append(instrs, instr)
		params = append(params, ps)
	}
	for i, instr := range instrs {
		snap.AddParameters(instr, params[i])
	}
	return instrs, nil
}

// Insert parses commands and inserts them at index.
func (a *Applicator) Insert(ev *ir.Event, index int, commands []string) error {
	_, err := a.ApplyAt(ev, index, &config.EventEdit{AddBefore: commands, MatchLength: 1})
	return err
}

func insertAt(list []*ir.Instruction, at int, add []*ir.Instruction) []*ir.Instruction {
	out := make([]*ir.Instruction, 0, len(list)+len(add))
	out = append(out, list[:at]...)
	out = append(out, add...)
	return append(out, list[at:]...)
}
