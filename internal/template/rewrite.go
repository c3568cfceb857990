package template

import (
	"context"
	"fmt"

	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// setArg sets argument k of instruction i with a journaled Set edit.
func setArg(ctx context.Context, p *engine.MapPatch, ev *ir.Event, i, k int, v int64, source string) error {
	idx := k
	edit := &config.EventEdit{
		MatchLength: 1,
		Set:         &config.SetEdit{Param: config.InstructionParameter{Index: &idx}, Value: v},
	}
	_, err := p.ApplyAt(ctx, ev, i, edit, source)
	return err
}

// setInitArg sets initializer argument k of instruction i.
func setInitArg(ctx context.Context, p *engine.MapPatch, ev *ir.Event, i, k int, v int64, source string) error {
	arg := k
	edit := &config.EventEdit{
		MatchLength: 1,
		Set:         &config.SetEdit{Param: config.InstructionParameter{InitArg: &arg}, Value: v},
	}
	_, err := p.ApplyAt(ctx, ev, i, edit, source)
	return err
}

// rewriteValues sets every argument for which remap returns a new value.
// Arguments filled in by parameters are left alone. It returns the
// number of arguments changed.
func rewriteValues(ctx context.Context, p *engine.MapPatch, ev *ir.Event, remap func(d *decodedArg) (int64, bool), source string) (int, error) {
	cat := p.Catalog()
	params := ir.ParamsByInstruction(ev)
	changed := 0
	for i, instr := range ev.Instructions {
		in := engine.View(cat, instr, params[i])
		if in.Decoded == nil {
			continue
		}
		for k := range in.Decoded.Values {
			if parameterized(in, k) {
				continue
			}
			v, ok := remap(&decodedArg{in: in, k: k})
			if !ok {
				continue
			}
			if err := setArg(ctx, p, ev, i, k, v, source); err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

// decodedArg is one argument of a decoded instruction.
type decodedArg struct {
	in *engine.Instr
	k  int
}

func (a *decodedArg) value() int64 { return a.in.Decoded.Values[a.k] }

func parameterized(in *engine.Instr, k int) bool {
	off := int64(in.Decoded.Layout.Offsets[k])
	for _, p := range in.Params {
		if p.TargetStartByte == off {
			return true
		}
	}
	return false
}

// RelocateEvent rewrites the ids and condition groups of every
// instruction in ev by value. An args-only relocation changes nothing.
func RelocateEvent(ctx context.Context, p *engine.MapPatch, ev *ir.Event, r *Relocation, source string) (int, error) {
	if r.Empty() || r.ArgsOnly {
		return 0, nil
	}
	return rewriteValues(ctx, p, ev, func(a *decodedArg) (int64, bool) {
		return r.value(a.in.Decoded, a.k)
	}, source)
}

// replaceRegion swaps instructions [start, start+length) of ev for
// commands. An empty commands list removes the region.
func replaceRegion(ctx context.Context, p *engine.MapPatch, ev *ir.Event, start, length int, commands []string, source string) error {
	if len(commands) > 0 {
		add := &config.EventEdit{MatchLength: length, AddAfter: commands}
		if _, err := p.ApplyAt(ctx, ev, start, add, source); err != nil {
			return err
		}
	}
	remove := &config.EventEdit{MatchLength: length, Remove: config.RemoveFirst}
	_, err := p.ApplyAt(ctx, ev, start, remove, source)
	return err
}

// replaceEvent swaps the whole body of ev for commands.
func replaceEvent(ctx context.Context, p *engine.MapPatch, ev *ir.Event, commands []string, source string) error {
	if len(ev.Instructions) > 0 {
		if _, err := p.Apply(ctx, ev, &config.EventEdit{MatchLength: 1, Remove: config.RemoveFirst}, source); err != nil {
			return err
		}
	}
	if len(commands) == 0 {
		return nil
	}
	_, err := p.ApplyAt(ctx, ev, 0, &config.EventEdit{MatchLength: 1, AddBefore: commands}, source)
	return err
}

// extras are the free-form edits a template may carry.
type extras struct {
	Removes []string
	Replace string
	Add     []*config.EventAddCommand
}

// applyExtras applies removals, then the replacement, then additions.
// Anchor and command text is relocated by r first.
func applyExtras(ctx context.Context, p *engine.MapPatch, ev *ir.Event, x extras, r *Relocation, label string) error {
	for j, cmd := range x.Removes {
		edit := &config.EventEdit{
			Match:       &config.InstructionMatcher{Instruction: r.Command(cmd)},
			MatchLength: 1,
			Remove:      config.RemoveFirst,
		}
		if _, err := p.Apply(ctx, ev, edit, fmt.Sprintf("%s.Remove[%d]", label, j)); err != nil {
			return err
		}
	}

	if x.Replace != "" {
		from, to, err := config.SplitReplace(x.Replace)
		if err != nil {
			return err
		}
		match := &config.InstructionMatcher{Instruction: r.Command(from)}
		source := label + ".Replace"
		add := &config.EventEdit{Match: match, MatchLength: 1, AddAfter: []string{r.Command(to)}}
		if _, err := p.Apply(ctx, ev, add, source); err != nil {
			return err
		}
		remove := &config.EventEdit{Match: match, MatchLength: 1, Remove: config.RemoveFirst}
		if _, err := p.Apply(ctx, ev, remove, source); err != nil {
			return err
		}
	}

	for j, a := range x.Add {
		source := fmt.Sprintf("%s.Add[%d]", label, j)
		cmd := []string{r.Command(a.Command)}
		var err error
		switch {
		case a.Before != "":
			match := &config.InstructionMatcher{Instruction: r.Command(a.Before)}
			_, err = p.Apply(ctx, ev, &config.EventEdit{Match: match, MatchLength: 1, AddBefore: cmd}, source)
		case a.After != "":
			match := &config.InstructionMatcher{Instruction: r.Command(a.After)}
			_, err = p.Apply(ctx, ev, &config.EventEdit{Match: match, MatchLength: 1, AddAfter: cmd}, source)
		default:
			_, err = p.ApplyAt(ctx, ev, len(ev.Instructions), &config.EventEdit{MatchLength: 1, AddBefore: cmd}, source)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// relocateInitArgs relocates, by value, the arguments that the
// initializers of callee in ev pass. positions limits the arguments
// considered; nil considers every one. It returns the number changed.
func relocateInitArgs(ctx context.Context, p *engine.MapPatch, ev *ir.Event, callee int64, r *Relocation, positions []int, source string) (int, error) {
	if ev == nil || r.Empty() {
		return 0, nil
	}
	changed := 0
	for _, i := range initializerIndices(p, ev, callee) {
		args := engine.View(p.Catalog(), ev.Instructions[i], nil).InitArgs()
		for _, k := range argIndices(positions, len(args)) {
			nv := r.ID(args[k])
			if nv == args[k] {
				continue
			}
			if err := setInitArg(ctx, p, ev, i, k, nv, source); err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

// argIndices returns positions clipped to n, or 0..n-1 when positions is
// nil.
func argIndices(positions []int, n int) []int {
	if positions == nil {
		out := make([]int, n)
		for k := range out {
			out[k] = k
		}
		return out
	}
	var out []int
	for _, k := range positions {
		if k < n {
			out = append(out, k)
		}
	}
	return out
}

// argPositions returns the initializer argument positions tmpl declares
// in ArgEntities and ArgFlags, or nil when it declares none.
func argPositions(tmpl *config.EnemyTemplate) ([]int, error) {
	var out []int
	for _, tok := range tmpl.ArgTokens() {
		k, err := initArgIndex(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// initializerIndices returns the positions of the initializers in ev
// that start callee.
func initializerIndices(p *engine.MapPatch, ev *ir.Event, callee int64) []int {
	params := ir.ParamsByInstruction(ev)
	var out []int
	for i, instr := range ev.Instructions {
		in := engine.View(p.Catalog(), instr, params[i])
		if in.IsInit() && in.Callee() == callee {
			out = append(out, i)
		}
	}
	return out
}
