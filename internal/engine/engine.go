package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/ir"
)

// Pass is a map-level transformation run after the configured new events,
// existing-event edits, and initializers. The template expanders are
// passes.
//
// Prepare sees every input script, unmodified, before any map is patched.
// Whatever it builds must be immutable afterwards: Apply is called
// concurrently for different maps.
type Pass interface {
	Name() string
	Prepare(ctx context.Context, scripts []*ir.Script) error
	Apply(ctx context.Context, p *MapPatch) error
}

// Engine patches the scripts of a set of maps according to an event
// configuration.
//
// Per map, the order is: NewEvents, ExistingEvents (edits in document
// order), Initialize, then each Pass in registration order. Different
// maps share nothing mutable and are patched in parallel.
//
// An error aborts the whole run. Inputs are never modified; callers get
// patched copies only when every map succeeded.
type Engine struct {
	cat         *catalog.Catalog
	cfg         *config.EventConfig
	opts        config.Options
	app         *Applicator
	logger      *slog.Logger
	journal     Journal
	runIDs      RunIDGenerator
	passes      []Pass
	parallelism int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOptions sets the option values If expressions are evaluated
// against. Default: all options off.
func WithOptions(opts config.Options) EngineOption {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithJournal records every run and applied change to j.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithPass appends a pass. Passes run in the order they are added.
func WithPass(p Pass) EngineOption {
	return func(e *Engine) {
		e.passes = append(e.passes, p)
	}
}

// WithParallelism bounds how many maps are patched at once.
// Default: GOMAXPROCS.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// New creates an Engine.
func New(cat *catalog.Catalog, cfg *config.EventConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		cat:         cat,
		cfg:         cfg,
		app:         NewApplicator(cat),
		logger:      slog.Default(),
		runIDs:      UUIDv7Generator{},
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the instruction catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Config returns the event configuration.
func (e *Engine) Config() *config.EventConfig { return e.cfg }

// Options returns the option values.
func (e *Engine) Options() config.Options { return e.opts }

// RunResult is the output of a successful run.
type RunResult struct {
	RunID string
	// Scripts are the patched copies, in input order.
	Scripts []*ir.Script
}

// PatchAll patches every script.
func (e *Engine) PatchAll(ctx context.Context, scripts []*ir.Script) (*RunResult, error) {
	runID := e.runIDs.Generate()
	log := e.logger.With("run", runID)

	maps := make([]string, len(scripts))
	seen := make(map[string]bool, len(scripts))
	for i, s := range scripts {
		if seen[s.Map] {
			return nil, fmt.Errorf("map %q given twice", s.Map)
		}
		seen[s.Map] = true
		maps[i] = s.Map
	}
	for _, m := range e.cfg.Maps() {
		if !seen[m] {
			log.Warn("configured map has no script", "map", m)
		}
	}

	if e.journal != nil {
		run := RunRecord{ID: runID, Options: e.opts.Enabled(), Maps: maps}
		if err := e.journal.BeginRun(ctx, run); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	log.Info("patch run starting", "maps", len(scripts), "passes", len(e.passes))
	out, err := e.patchAll(ctx, runID, log, scripts)

	if e.journal != nil {
		status, msg := RunSucceeded, ""
		if err != nil {
			status, msg = RunFailed, err.Error()
		}
		if ferr := e.journal.FinishRun(context.WithoutCancel(ctx), runID, status, msg); ferr != nil && err == nil {
			err = fmt.Errorf("journal: %w", ferr)
		}
	}
	if err != nil {
		log.Error("patch run failed", "error", err)
		return nil, err
	}
	log.Info("patch run finished", "maps", len(out))
	return &RunResult{RunID: runID, Scripts: out}, nil
}

// PatchScript patches a single script.
func (e *Engine) PatchScript(ctx context.Context, s *ir.Script) (*ir.Script, error) {
	res, err := e.PatchAll(ctx, []*ir.Script{s})
	if err != nil {
		return nil, err
	}
	return res.Scripts[0], nil
}

func (e *Engine) patchAll(ctx context.Context, runID string, log *slog.Logger, scripts []*ir.Script) ([]*ir.Script, error) {
	for _, pass := range e.passes {
		if err := pass.Prepare(ctx, scripts); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", pass.Name(), err)
		}
	}

	clock := NewClock()
	out := make([]*ir.Script, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, s := range scripts {
		i, s := i, s
		g.Go(func() error {
			p := &MapPatch{
				Script: s.Clone(),
				engine: e,
				runID:  runID,
				clock:  clock,
				names:  make(map[string]int64),
				logger: log.With("map", s.Map),
			}
			if err := p.run(gctx); err != nil {
				return fmt.Errorf("map %s: %w", s.Map, err)
			}
			out[i] = p.Script
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// include evaluates a construct's If expression.
func (e *Engine) include(b *config.Base) (bool, error) {
	ok, err := b.IncludeFor(&e.opts)
	if err != nil {
		return false, wrapError(ErrCodeInvalidExpression, err, "If %q", b.If)
	}
	return ok, nil
}

// Materialize builds the event a NewEvent describes: arguments filtered by
// their If expressions and packed, names substituted with placeholder
// tokens, and every command parsed. id is used when the NewEvent does not
// set one.
func (e *Engine) Materialize(ne *config.NewEvent, id int64) (*ir.Event, []PackedArgument, error) {
	var args []*config.EventArgument
	for _, a := range ne.Arguments {
		ok, err := e.include(&a.Base)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			args = append(args, a)
		}
	}
	packed, err := PackArguments(args)
	if err != nil {
		return nil, nil, err
	}

	rest, err := ir.ParseRestBehavior(ne.Rest)
	if err != nil {
		return nil, nil, wrapError(ErrCodeInvalidCommand, err, "Rest")
	}
	if ne.ID != 0 {
		id = ne.ID
	}
	ev := &ir.Event{ID: id, Rest: rest, Parameters: []ir.Parameter{}}
	commands := SubstituteArguments(ne.Commands, packed)
	if len(commands) > 0 {
		if err := e.app.Insert(ev, 0, commands); err != nil {
			return nil, nil, err
		}
	}
	return ev, packed, nil
}

// MapPatch is the state of one map being patched. Passes receive it to
// read the configuration and apply edits through the engine, so every
// change is logged and journaled the same way.
//
// A MapPatch is used by one goroutine.
type MapPatch struct {
	// Script is the working copy of the map's script.
	Script *ir.Script

	engine *Engine
	runID  string
	clock  *Clock
	names  map[string]int64
	logger *slog.Logger
}

// Map returns the map name.
func (p *MapPatch) Map() string { return p.Script.Map }

// Catalog returns the instruction catalog.
func (p *MapPatch) Catalog() *catalog.Catalog { return p.engine.cat }

// Config returns the event configuration.
func (p *MapPatch) Config() *config.EventConfig { return p.engine.cfg }

// Options returns the option values.
func (p *MapPatch) Options() *config.Options { return &p.engine.opts }

// Applicator returns the edit applicator.
func (p *MapPatch) Applicator() *Applicator { return p.engine.app }

// Logger returns the map's logger.
func (p *MapPatch) Logger() *slog.Logger { return p.logger }

// EventID returns the id registered for an event name in this map.
func (p *MapPatch) EventID(name string) (int64, bool) {
	id, ok := p.names[name]
	return id, ok
}

func (p *MapPatch) run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"NewEvents", p.addNewEvents},
		{"ExistingEvents", p.editExistingEvents},
		{"Initialize", p.addInitializers},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(ctx); err != nil {
			return err
		}
	}
	for _, pass := range p.engine.passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pass.Apply(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", pass.Name(), err)
		}
	}
	return nil
}

func (p *MapPatch) addNewEvents(ctx context.Context) error {
	for i, ne := range p.engine.cfg.NewEvents[p.Map()] {
		ok, err := p.engine.include(&ne.Base)
		if err != nil {
			return WithEvent(err, p.Map(), ne.ID)
		}
		if !ok {
			p.logger.Debug("new event skipped", "name", ne.Name, "if", ne.If)
			continue
		}

		id := ne.ID
		if id == 0 {
			id = p.Script.MaxEventID() + 1
		}
		ev, packed, err := p.engine.Materialize(ne, id)
		if err != nil {
			return WithEvent(err, p.Map(), id)
		}
		if p.Script.Event(ev.ID) != nil {
			return fmt.Errorf("new event %d (%s) already exists", ev.ID, ne.Name)
		}
		p.Script.Events = append(p.Script.Events, ev)
		if ne.Name != "" {
			p.names[ne.Name] = ev.ID
		}

		p.logger.Info("event added", "event_id", ev.ID, "name", ne.Name, "commands", len(ev.Instructions), "arguments", len(packed))
		res := Result{Kind: "NewEvent", Count: len(ev.Instructions)}
		if err := p.record(ctx, ev, fmt.Sprintf("NewEvents[%d]", i), "", res, ""); err != nil {
			return err
		}
	}
	return nil
}

func (p *MapPatch) editExistingEvents(ctx context.Context) error {
	for _, ee := range p.engine.cfg.ExistingEvents[p.Map()] {
		ok, err := p.engine.include(&ee.Base)
		if err != nil {
			return WithEvent(err, p.Map(), ee.ID)
		}
		if !ok {
			p.logger.Debug("existing event skipped", "event_id", ee.ID, "if", ee.If)
			continue
		}
		if ee.Name != "" {
			p.names[ee.Name] = ee.ID
		}
		if len(ee.Edits) == 0 {
			continue
		}

		ev := p.Script.Event(ee.ID)
		if ev == nil {
			return &PatchError{Code: ErrCodeMatchNotFound, Message: "event not found", Map: p.Map(), EventID: ee.ID}
		}
		// Edits run on a copy that replaces the event only if all succeed.
		work := ev.Clone()
		for j, edit := range ee.Edits {
			source := fmt.Sprintf("ExistingEvents[%d].Edits[%d]", ee.ID, j)
			if _, err := p.Apply(ctx, work, edit, source); err != nil {
				return err
			}
		}
		p.Script.Replace(work)
		p.logger.Info("event edited", "event_id", ee.ID, "edits", len(ee.Edits))
	}
	return nil
}

func (p *MapPatch) addInitializers(ctx context.Context) error {
	for i, ai := range p.engine.cfg.Initialize[p.Map()] {
		var id int64
		switch {
		case ai.ID != nil:
			id = *ai.ID
		default:
			var ok bool
			if id, ok = p.names[ai.Name]; !ok {
				return &PatchError{
					Code:    ErrCodeMatchNotFound,
					Message: fmt.Sprintf("no event named %q", ai.Name),
					Map:     p.Map(),
				}
			}
		}
		if err := p.AddInitializer(ctx, id, ai.Arguments, fmt.Sprintf("Initialize[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Apply applies edit to ev, which must belong to this map, and journals
// the change.
func (p *MapPatch) Apply(ctx context.Context, ev *ir.Event, edit *config.EventEdit, source string) (Result, error) {
	before := p.hash(ev)
	res, err := p.engine.app.Apply(ev, edit)
	if err != nil {
		return res, WithEvent(err, p.Map(), ev.ID)
	}
	p.logger.Debug("edit applied", "event_id", ev.ID, "edit", source, "kind", res.Kind, "index", res.Index, "count", res.Count)
	return res, p.record(ctx, ev, source, edit.Match.String(), res, before)
}

// ApplyAt applies edit at a known index of ev and journals the change.
func (p *MapPatch) ApplyAt(ctx context.Context, ev *ir.Event, index int, edit *config.EventEdit, source string) (Result, error) {
	before := p.hash(ev)
	res, err := p.engine.app.ApplyAt(ev, index, edit)
	if err != nil {
		return res, WithEvent(err, p.Map(), ev.ID)
	}
	p.logger.Debug("edit applied", "event_id", ev.ID, "edit", source, "kind", res.Kind, "index", res.Index, "count", res.Count)
	return res, p.record(ctx, ev, source, "@"+strconv.Itoa(index), res, before)
}

// Record journals a change a pass made to ev without going through Apply.
// before is the event's hash prior to the change, or empty if the event
// is new.
func (p *MapPatch) Record(ctx context.Context, ev *ir.Event, source, kind, before string) error {
	p.logger.Debug("event rewritten", "event_id", ev.ID, "edit", source, "kind", kind)
	return p.record(ctx, ev, source, "", Result{Kind: kind, Count: len(ev.Instructions)}, before)
}

// Hash returns the event hash journal records use.
func (p *MapPatch) Hash(ev *ir.Event) string {
	return p.hash(ev)
}

func (p *MapPatch) hash(ev *ir.Event) string {
	if p.engine.journal == nil {
		return ""
	}
	return ir.EventHash(ev)
}

func (p *MapPatch) record(ctx context.Context, ev *ir.Event, source, matcher string, res Result, before string) error {
	j := p.engine.journal
	if j == nil {
		return nil
	}
	err := j.RecordEdit(ctx, EditRecord{
		RunID:      p.runID,
		Seq:        p.clock.Next(),
		Map:        p.Map(),
		EventID:    ev.ID,
		Source:     source,
		Kind:       res.Kind,
		Index:      res.Index,
		Count:      res.Count,
		Matcher:    matcher,
		BeforeHash: before,
		AfterHash:  ir.EventHash(ev),
	})
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// Initializers returns the initializers in ev that start callee, in
// instruction order.
func (p *MapPatch) Initializers(ev *ir.Event, callee int64) []*Instr {
	params := ir.ParamsByInstruction(ev)
	var out []*Instr
	for i, instr := range ev.Instructions {
		in := View(p.engine.cat, instr, params[i])
		if in.IsInit() && in.Callee() == callee {
			out = append(out, in)
		}
	}
	return out
}

// AddInitializer appends InitializeEvent(slot, callee, args...) to event 0,
// creating event 0 if the map has none. The slot is the number of
// initializers of callee already there.
func (p *MapPatch) AddInitializer(ctx context.Context, callee int64, args []int64, source string) error {
	ev0 := p.Script.Event(0)
	before := ""
	if ev0 == nil {
		ev0 = &ir.Event{ID: 0, Parameters: []ir.Parameter{}}
		p.Script.Events = append([]*ir.Event{ev0}, p.Script.Events...)
	} else {
		before = p.hash(ev0)
	}

	slot := len(p.Initializers(ev0, callee))
	cmd := p.initializerCommand(int64(slot), callee, args)
	index := len(ev0.Instructions)
	if err := p.engine.app.Insert(ev0, index, []string{cmd}); err != nil {
		return WithEvent(err, p.Map(), 0)
	}

	p.logger.Info("initializer added", "callee", callee, "slot", slot, "args", len(args))
	return p.record(ctx, ev0, source, "", Result{Kind: "AddInitializer", Index: index, Count: 1}, before)
}

func (p *MapPatch) initializerCommand(slot, callee int64, args []int64) string {
	name := "2000[00]"
	if doc, ok := p.engine.cat.ByName("InitializeEvent"); ok && doc.Init != nil {
		name = doc.Name
	}
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, strconv.FormatInt(slot, 10), strconv.FormatInt(callee, 10))
	for _, a := range args {
		parts = append(parts, strconv.FormatInt(a, 10))
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
