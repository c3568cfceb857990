package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
	"github.com/roach88/evpatch/internal/store"
	"github.com/roach88/evpatch/internal/template"
	"github.com/roach88/evpatch/internal/testutil"
)

// Harness runs scenarios against one instruction catalog.
type Harness struct {
	cat    *catalog.Catalog
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness.
func New(cat *catalog.Catalog, opts ...Option) *Harness {
	h := &Harness{
		cat:    cat,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal. A returned error
// means the scenario itself is unusable (bad config, bad command text);
// patch failures and assertion failures are reported in the Result.
//
// Execution flow:
// 1. Parse config, options and assignment
// 2. Build the input scripts from command text
// 3. Patch with the engine and both template passes
// 4. Render the patched maps and read back the journal
// 5. Evaluate the expected error and the assertions
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg, opts, assignment, err := h.load(scenario)
	if err != nil {
		return nil, err
	}
	scripts, err := h.buildScripts(scenario.Scripts)
	if err != nil {
		return nil, fmt.Errorf("failed to build scripts: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	eng := engine.New(h.cat, cfg,
		engine.WithOptions(opts),
		engine.WithLogger(h.logger),
		engine.WithJournal(st),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDs(scenario.Name)),
		engine.WithPass(template.NewEnemyPass(h.cat, cfg, assignment)),
		engine.WithPass(template.NewItemPass(h.cat, cfg, assignment)),
	)

	result := NewResult()
	out, patchErr := eng.PatchAll(ctx, scripts)
	if patchErr != nil {
		result.RunError = patchErr.Error()
		result.ErrorCode = errorCode(patchErr)
	} else {
		result.Maps = h.render(out.Scripts)
	}

	// The journal is fresh, so it holds exactly this run.
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(runs) != 1 {
		return nil, fmt.Errorf("journal holds %d runs, want 1", len(runs))
	}
	result.RunID = runs[0].ID
	edits, err := st.ListEdits(ctx, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Edits = edits

	switch {
	case scenario.ExpectError == "" && patchErr != nil:
		result.AddError(fmt.Sprintf("patch failed: %v", patchErr))
	case scenario.ExpectError != "" && patchErr == nil:
		result.AddError(fmt.Sprintf("expected error %s, patch succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected error %s, got %v", scenario.ExpectError, patchErr))
	}
	if patchErr == nil {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
	}

	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "edits", len(result.Edits))
	return result, nil
}

func (h *Harness) load(scenario *Scenario) (*config.EventConfig, config.Options, *config.Assignment, error) {
	var opts config.Options
	doc, err := scenario.configDocument()
	if err != nil {
		return nil, opts, nil, fmt.Errorf("failed to encode config: %w", err)
	}
	cfg, err := config.Parse(doc)
	if err != nil {
		return nil, opts, nil, fmt.Errorf("config: %w", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, opts, nil, fmt.Errorf("config: %w", &config.LoadError{Errors: errs})
	}
	if opts, err = config.ParseOptions(scenario.Options); err != nil {
		return nil, opts, nil, fmt.Errorf("options: %w", err)
	}

	doc, err = scenario.assignmentDocument()
	if err != nil {
		return nil, opts, nil, fmt.Errorf("failed to encode assignment: %w", err)
	}
	assignment, err := config.ParseAssignment(doc)
	if err != nil {
		return nil, opts, nil, fmt.Errorf("assignment: %w", err)
	}
	return cfg, opts, assignment, nil
}

// buildScripts parses every scenario event into instructions.
func (h *Harness) buildScripts(specs []ScriptSpec) ([]*ir.Script, error) {
	app := engine.NewApplicator(h.cat)
	scripts := make([]*ir.Script, 0, len(specs))
	for _, spec := range specs {
		s := &ir.Script{Map: spec.Map, Events: make([]*ir.Event, 0, len(spec.Events))}
		for _, es := range spec.Events {
			ev := &ir.Event{ID: es.ID, Parameters: []ir.Parameter{}}
			if len(es.Commands) > 0 {
				if err := app.Insert(ev, 0, es.Commands); err != nil {
					return nil, fmt.Errorf("%s event %d: %w", spec.Map, es.ID, err)
				}
			}
			s.Events = append(s.Events, ev)
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// render formats every event of scripts back to command text.
func (h *Harness) render(scripts []*ir.Script) []MapSnapshot {
	out := make([]MapSnapshot, 0, len(scripts))
	for _, s := range scripts {
		ms := MapSnapshot{Map: s.Map, Events: make([]EventSnapshot, 0, len(s.Events))}
		for _, ev := range s.Events {
			params := ir.ParamsByInstruction(ev)
			commands := make([]string, len(ev.Instructions))
			for i, instr := range ev.Instructions {
				commands[i] = h.cat.Format(instr, params[i])
			}
			ms.Events = append(ms.Events, EventSnapshot{ID: ev.ID, Commands: commands})
		}
		out = append(out, ms)
	}
	return out
}

func errorCode(err error) string {
	var pe *engine.PatchError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	return "ERROR"
}
