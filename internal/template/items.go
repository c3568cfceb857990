package template

import (
	"context"
	"fmt"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// ItemPass rewrites the events that award items whose flags moved.
type ItemPass struct {
	cat        *catalog.Catalog
	cfg        *config.EventConfig
	assignment *config.Assignment
}

var _ engine.Pass = (*ItemPass)(nil)

// NewItemPass creates an ItemPass.
func NewItemPass(cat *catalog.Catalog, cfg *config.EventConfig, a *config.Assignment) *ItemPass {
	if a == nil {
		a = &config.Assignment{}
	}
	return &ItemPass{cat: cat, cfg: cfg, assignment: a}
}

// Name implements engine.Pass.
func (ip *ItemPass) Name() string { return "items" }

// Prepare implements engine.Pass. Item templates need nothing up front.
func (ip *ItemPass) Prepare(context.Context, []*ir.Script) error { return nil }

// Apply implements engine.Pass.
//
// An event spec without Map applies to whichever map has its event. The
// event and event 0 are edited on copies that replace the originals only
// when every template of the spec succeeded.
func (ip *ItemPass) Apply(ctx context.Context, p *engine.MapPatch) error {
	for i, spec := range ip.cfg.ItemEvents {
		if len(spec.ItemTemplate) == 0 || (spec.Map != "" && spec.Map != p.Map()) {
			continue
		}
		ev := p.Script.Event(spec.ID)
		if ev == nil {
			if spec.Map == p.Map() {
				return &engine.PatchError{Code: engine.ErrCodeMatchNotFound, Message: "item event not found", Map: p.Map(), EventID: spec.ID}
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		work := ev.Clone()
		var work0 *ir.Event
		if ev0 := p.Script.Event(0); ev0 != nil && spec.ID != 0 {
			work0 = ev0.Clone()
		}
		changed := false
		for j, t := range spec.ItemTemplate {
			if t.IsDefault() {
				continue
			}
			label := fmt.Sprintf("ItemEvents[%d].ItemTemplate[%d]", i, j)
			ok, err := ip.apply(ctx, p, spec, t, work, work0, label)
			if err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
			changed = changed || ok
		}
		if !changed {
			continue
		}
		p.Script.Replace(work)
		if work0 != nil {
			p.Script.Replace(work0)
		}
		p.Logger().Info("item event rewritten", "event_id", spec.ID)
	}
	return nil
}

// apply runs one item template. It applies only if a flag the template
// names moved, or if it names none. Remove, Replace and Add are written
// against the authored flags, so they run before the flags are rewritten.
func (ip *ItemPass) apply(ctx context.Context, p *engine.MapPatch, spec *config.EventSpec, t *config.ItemTemplate, ev, ev0 *ir.Event, label string) (bool, error) {
	moved := ip.assignment.ItemFlags
	flags, err := config.ParseIDs(t.EventFlag)
	if err != nil {
		return false, err
	}
	listed := make(map[int64]bool, len(flags))
	for _, f := range flags {
		listed[f] = true
	}
	// The flag is read from argFrom and written to argIndex.
	argIndex, argFrom := -1, -1
	if dst, src := t.EventFlagArgs(); dst != "" {
		if argIndex, err = initArgIndex(dst); err != nil {
			return false, err
		}
		argFrom = argIndex
		if src != "" {
			if argFrom, err = initArgIndex(src); err != nil {
				return false, err
			}
		}
	}

	active := len(flags) == 0 && argIndex < 0
	for f := range listed {
		if to, ok := moved[f]; ok && to != f {
			active = true
		}
	}
	var inits []int
	if ev0 != nil {
		inits = initializerIndices(p, ev0, spec.ID)
	}
	if argIndex >= 0 {
		for _, i := range inits {
			args := engine.View(p.Catalog(), ev0.Instructions[i], nil).InitArgs()
			if max(argIndex, argFrom) >= len(args) {
				return false, engine.NewError(engine.ErrCodeUnresolvedParameter, "%s: initializer passes %d arguments", t.EventFlagArg, len(args))
			}
			if to, ok := moved[args[argFrom]]; ok && to != args[argFrom] {
				active = true
			}
		}
	}
	if !active {
		p.Logger().Debug("item template skipped, no flag moved", "event_id", spec.ID, "template", label)
		return false, nil
	}

	var removes []string
	if t.Remove != "" {
		removes = []string{t.Remove}
	}
	if err := applyExtras(ctx, p, ev, extras{Removes: removes, Replace: t.Replace, Add: t.Add}, nil, label); err != nil {
		return false, err
	}

	if len(listed) > 0 {
		_, err := rewriteValues(ctx, p, ev, func(a *decodedArg) (int64, bool) {
			if typ := a.in.Decoded.Layout.Types[a.k]; typ == catalog.F32 || typ.Width() != 4 {
				return 0, false
			}
			v := a.value()
			to, ok := moved[v]
			return to, ok && listed[v] && to != v
		}, label+".EventFlag")
		if err != nil {
			return false, err
		}
	}

	if argIndex >= 0 {
		for _, i := range inits {
			args := engine.View(p.Catalog(), ev0.Instructions[i], nil).InitArgs()
			to, ok := moved[args[argFrom]]
			if !ok || to == args[argIndex] {
				continue
			}
			if err := setInitArg(ctx, p, ev0, i, argIndex, to, label+".EventFlagArg"); err != nil {
				return false, err
			}
		}
	}

	if t.RemoveArg != "" {
		k, err := initArgIndex(t.RemoveArg)
		if err != nil {
			return false, err
		}
		for _, i := range inits {
			if err := setInitArg(ctx, p, ev0, i, k, 0, label+".RemoveArg"); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// initArgIndex maps an X<src>_4 token to the index of the initializer
// argument that fills it.
func initArgIndex(token string) (int, error) {
	src, width, ok := config.ParseArgToken(token)
	if !ok {
		return 0, fmt.Errorf("%q is not an X<src>_<width> argument", token)
	}
	if width != 4 || src%4 != 0 {
		return 0, fmt.Errorf("%s: initializer arguments are 4-byte aligned", token)
	}
	return src / 4, nil
}
