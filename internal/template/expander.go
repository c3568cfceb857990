package template

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// EnemyPass applies the enemy placements of an assignment.
type EnemyPass struct {
	cat        *catalog.Catalog
	cfg        *config.EventConfig
	assignment *config.Assignment

	// sources is built by Prepare and read-only afterwards.
	sources map[int64]*sourceEntry
}

type sourceEntry struct {
	lib *Library
	err error
}

var _ engine.Pass = (*EnemyPass)(nil)

// NewEnemyPass creates an EnemyPass.
func NewEnemyPass(cat *catalog.Catalog, cfg *config.EventConfig, a *config.Assignment) *EnemyPass {
	if a == nil {
		a = &config.Assignment{}
	}
	return &EnemyPass{cat: cat, cfg: cfg, assignment: a}
}

// Name implements engine.Pass.
func (e *EnemyPass) Name() string { return "enemies" }

// Prepare builds the segment library of every placed source entity from
// the unpatched scripts. Library errors surface when a placement uses
// the library.
func (e *EnemyPass) Prepare(ctx context.Context, scripts []*ir.Script) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	needed := make(map[int64]bool)
	for _, pl := range e.assignment.Enemies {
		needed[pl.Source] = true
	}

	e.sources = make(map[int64]*sourceEntry)
	declared := make(map[int64]int64)
	for _, spec := range e.cfg.EnemyEvents {
		for _, tmpl := range spec.Template {
			if tmpl.Entity == 0 || len(tmpl.Segments) == 0 || !needed[tmpl.Entity] {
				continue
			}
			if prev, ok := declared[tmpl.Entity]; ok {
				return fmt.Errorf("entity %d: segments declared by events %d and %d", tmpl.Entity, prev, spec.ID)
			}
			declared[tmpl.Entity] = spec.ID

			entry := &sourceEntry{}
			e.sources[tmpl.Entity] = entry
			s, err := findScript(scripts, spec)
			if err != nil {
				entry.err = err
				continue
			}
			var args []int64
			if needsArgs(tmpl, e.cfg.DefaultSegments) {
				if args, err = startArgs(e.cat, s, spec.ID, tmpl.Entity); err != nil {
					entry.err = err
					continue
				}
			}
			entry.lib, entry.err = BuildLibrary(e.cat, s.Map, s.Event(spec.ID), spec, tmpl, e.cfg.DefaultSegments, args)
			if entry.err != nil {
				entry.err = engine.WithEvent(entry.err, s.Map, spec.ID)
			}
		}
	}
	return nil
}

// findScript returns the script holding spec's event: the one named by
// spec.Map, or the only one with that event id.
func findScript(scripts []*ir.Script, spec *config.EventSpec) (*ir.Script, error) {
	var found []*ir.Script
	for _, s := range scripts {
		if spec.Map != "" && s.Map != spec.Map {
			continue
		}
		if s.Event(spec.ID) != nil {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, &engine.PatchError{Code: engine.ErrCodeMatchNotFound, Message: "source event not found", Map: spec.Map, EventID: spec.ID}
	}
	maps := make([]string, len(found))
	for i, s := range found {
		maps[i] = s.Map
	}
	return nil, fmt.Errorf("source event %d is in maps %s; set Map", spec.ID, strings.Join(maps, ", "))
}

// Apply implements engine.Pass.
func (e *EnemyPass) Apply(ctx context.Context, p *engine.MapPatch) error {
	type job struct {
		index int
		pl    *config.Placement
	}
	var jobs []job
	for i, pl := range e.assignment.Enemies {
		if pl.Map == p.Map() {
			jobs = append(jobs, job{i, pl})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	// Every placement starts from its host event, and copies initializers
	// from event 0, as they were before any placement ran, so duplicates
	// never see each other's changes.
	var base0 *ir.Event
	if ev0 := p.Script.Event(0); ev0 != nil {
		base0 = ev0.Clone()
	}
	base := make(map[int64]*ir.Event)
	for _, j := range jobs {
		if _, ok := base[j.pl.Event]; ok {
			continue
		}
		ev := p.Script.Event(j.pl.Event)
		if ev == nil {
			return &engine.PatchError{Code: engine.ErrCodeMatchNotFound, Message: "host event not found", Map: p.Map(), EventID: j.pl.Event}
		}
		base[j.pl.Event] = ev.Clone()
	}

	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.place(ctx, p, j.index, j.pl, base[j.pl.Event], base0); err != nil {
			return fmt.Errorf("placement Enemies[%d]: %w", j.index, err)
		}
	}
	p.Logger().Info("enemies placed", "placements", len(jobs))
	return nil
}

func (e *EnemyPass) place(ctx context.Context, p *engine.MapPatch, i int, pl *config.Placement, base, base0 *ir.Event) error {
	label := fmt.Sprintf("Enemies[%d]", i)
	log := p.Logger().With("placement", label, "source", pl.Source, "target", pl.Target, "event_id", pl.OutputEvent())

	spec, host, err := e.hostTemplate(pl)
	if err != nil {
		return err
	}
	if host.IsDefault() {
		log.Debug("default template, nothing to do")
		return nil
	}
	positions, err := argPositions(host)
	if err != nil {
		return err
	}

	var src *Library
	if len(host.Segments) > 0 {
		if src, err = e.source(pl.Source); err != nil {
			return err
		}
		if err := CheckComplete(src.Types(), pl.Encounter); err != nil {
			return engine.WithEvent(err, p.Map(), pl.OutputEvent())
		}
	}

	hostReloc, err := NewRelocation(pl.HostEntity(), pl, spec.DupeKind(host), host.Dupe, e.assignment.Dupes)
	if err != nil {
		return err
	}
	if err := checkRegions(host.Regions, pl, "template"); err != nil {
		return err
	}
	var srcReloc *Relocation
	if src != nil {
		if srcReloc, err = NewRelocation(pl.Source, pl, src.Kind, src.Template.Dupe, e.assignment.Dupes); err != nil {
			return err
		}
		for _, t := range config.SegmentTypes {
			if seg, ok := src.Segments[t]; ok {
				if err := checkRegions(seg.Regions, pl, "segment "+t); err != nil {
					return err
				}
			}
		}
	}

	if pl.NewEvent != 0 && p.Script.Event(pl.NewEvent) != nil {
		return fmt.Errorf("new event %d already exists", pl.NewEvent)
	}
	out := base.Clone()
	out.ID = pl.OutputEvent()
	if pl.NewEvent != 0 {
		if err := p.Record(ctx, out, label, "CopyEvent", ""); err != nil {
			return err
		}
	}

	switch {
	case host.BaseType() == config.TemplateRemove:
		err = replaceEvent(ctx, p, out, nil, label+".remove")
	case len(host.NewEvent) > 0:
		err = replaceEvent(ctx, p, out, hostReloc.Commands(host.NewEvent), label+".NewEvent")
	default:
		if _, err = RelocateEvent(ctx, p, out, hostReloc, label+".relocate"); err == nil && src != nil {
			err = e.transplant(ctx, p, out, host, src, hostReloc, srcReloc, pl, label)
		}
	}
	if err != nil {
		return err
	}

	removes := host.RemoveCommands()
	if pl.IsDupe() && host.RemoveDupe != "" {
		removes = append(removes, host.RemoveDupe)
	}
	if err := applyExtras(ctx, p, out, extras{Removes: removes, Replace: host.Replace, Add: host.Add}, hostReloc, label); err != nil {
		return err
	}

	if pl.NewEvent == 0 {
		p.Script.Replace(out)
		// The event's own initializers carry the ids it reads through
		// parameters.
		if positions != nil || len(base.Parameters) > 0 {
			n, err := relocateInitArgs(ctx, p, p.Script.Event(0), pl.Event, hostReloc, positions, label+".Initialize")
			if err != nil {
				return err
			}
			log.Debug("initializer arguments relocated", "changed", n)
		}
	} else {
		p.Script.Events = append(p.Script.Events, out)
		if err := e.copyInitializers(ctx, p, pl, base0, hostReloc, positions, label); err != nil {
			return err
		}
	}
	log.Info("enemy placed", "relocation", hostReloc.String(), "instructions", len(out.Instructions))
	return nil
}

// transplant replaces each host segment in out with the matching source
// segment. Spans are replaced last to first so earlier indices hold.
func (e *EnemyPass) transplant(ctx context.Context, p *engine.MapPatch, out *ir.Event, host *config.EnemyTemplate, src *Library, hostReloc, srcReloc *Relocation, pl *config.Placement, label string) error {
	spans, err := locateSegments(p.Catalog(), out, mergeDefaults(host.Segments, e.cfg.DefaultSegments), hostReloc)
	if err != nil {
		return err
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })

	for _, sp := range spans {
		typ := sp.Segment.Type
		var commands []string
		if typ != config.SegRemove {
			if seg, ok := src.Substitute(typ); ok {
				commands = srcReloc.Commands(seg.Commands(pl.Encounter, pl.Moved))
				if err := checkUnbound(commands, src, pl, seg.Type); err != nil {
					return err
				}
			} else {
				p.Logger().Debug("segment has no source counterpart, removed", "segment", typ, "source", pl.Source)
			}
		}
		source := fmt.Sprintf("%s.Segments[%s]", label, typ)
		if err := replaceRegion(ctx, p, out, sp.Start, sp.Len(), commands, source); err != nil {
			return err
		}
	}
	return nil
}

// checkUnbound rejects segment commands that still read a parameter of
// the source event when they are moved into a different event. Such
// parameters belong in the segment's Params.
func checkUnbound(commands []string, src *Library, pl *config.Placement, typ string) error {
	if src.Map == pl.Map && src.EventID == pl.Event {
		return nil
	}
	for _, cmd := range commands {
		if tok := catalog.PlaceholderPattern.FindString(cmd); tok != "" {
			return &engine.PatchError{
				Code:    engine.ErrCodeUnresolvedParameter,
				Message: fmt.Sprintf("segment %s reads %s of source event %d; list it in the segment's Params", typ, tok, src.EventID),
				Matcher: cmd,
			}
		}
	}
	return nil
}

// copyInitializers starts a new event the way the host event is
// started: every initializer of the host in event 0, as it was before
// any placement, is copied with its arguments relocated. positions
// limits the relocated arguments; nil relocates every one.
func (e *EnemyPass) copyInitializers(ctx context.Context, p *engine.MapPatch, pl *config.Placement, ev0 *ir.Event, r *Relocation, positions []int, label string) error {
	var inits []*engine.Instr
	if ev0 != nil {
		inits = p.Initializers(ev0, pl.Event)
	}
	if len(inits) == 0 {
		p.Logger().Warn("host event has no initializer, new event will not run", "event_id", pl.Event, "new_event", pl.NewEvent)
		return nil
	}
	for k, in := range inits {
		args := in.InitArgs()
		relocated := append([]int64(nil), args...)
		for _, a := range argIndices(positions, len(args)) {
			relocated[a] = r.ID(args[a])
		}
		if err := p.AddInitializer(ctx, pl.NewEvent, relocated, fmt.Sprintf("%s.Initialize[%d]", label, k)); err != nil {
			return err
		}
	}
	return nil
}

func (e *EnemyPass) hostTemplate(pl *config.Placement) (*config.EventSpec, *config.EnemyTemplate, error) {
	for _, spec := range e.cfg.EnemyEvents {
		if spec.ID != pl.Event || (spec.Map != "" && spec.Map != pl.Map) {
			continue
		}
		for _, t := range spec.Template {
			if t.Entity == pl.HostEntity() {
				return spec, t, nil
			}
		}
	}
	return nil, nil, &engine.PatchError{
		Code:    engine.ErrCodeMatchNotFound,
		Message: fmt.Sprintf("no template for entity %d", pl.HostEntity()),
		Map:     pl.Map,
		EventID: pl.Event,
	}
}

func (e *EnemyPass) source(entity int64) (*Library, error) {
	entry, ok := e.sources[entity]
	if !ok {
		return nil, engine.NewError(engine.ErrCodeMatchNotFound, "no segment template for source entity %d", entity)
	}
	return entry.lib, entry.err
}

// checkRegions requires a relocation for every region id a moved target
// uses. Non-numeric words (region kinds) are ignored.
func checkRegions(regions []string, pl *config.Placement, what string) error {
	if !pl.Moved {
		return nil
	}
	for _, r := range regions {
		for _, f := range strings.Fields(r) {
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				continue
			}
			if _, ok := pl.Reloc[id]; !ok {
				return engine.NewError(engine.ErrCodeIncompleteTemplate, "%s: region %d has no relocation for moved target %d", what, id, pl.Target)
			}
		}
	}
	return nil
}
