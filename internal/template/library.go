package template

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// Span is a located segment: instructions Start through End inclusive.
type Span struct {
	Segment *config.CommandSegment
	Start   int
	End     int
}

// Len returns the number of instructions in the span.
func (s Span) Len() int { return s.End - s.Start + 1 }

// decl is a segment declaration. Segments merged in from DefaultSegments
// are optional: they are dropped when their anchors are not found.
type decl struct {
	seg      *config.CommandSegment
	optional bool
}

// mergeDefaults returns a template's segments followed by copies of the
// default segments whose types the template does not declare.
func mergeDefaults(own, defaults []*config.CommandSegment) []decl {
	out := make([]decl, 0, len(own)+len(defaults))
	declared := make(map[string]bool, len(own))
	for _, s := range own {
		out = append(out, decl{seg: s})
		declared[s.Type] = true
	}
	for _, s := range defaults {
		if declared[s.Type] {
			continue
		}
		out = append(out, decl{seg: s.Clone(), optional: true})
		declared[s.Type] = true
	}
	return out
}

// locateSegments finds the anchored segments of decls in ev. Anchor text is
// relocated by r before matching, so a relocated event can be searched
// with its template's original anchors.
//
// A Start of several ;-separated commands matches where they appear
// consecutively. End is searched from the start onward; without one the
// span is the start commands. PreSegment restricts the start search to
// after that segment. A start found more than once needs IgnoreMatch,
// which takes the first. Overlapping spans are an error.
func locateSegments(cat *catalog.Catalog, ev *ir.Event, decls []decl, r *Relocation) ([]Span, error) {
	l := &locator{cat: cat, ev: ev, params: ir.ParamsByInstruction(ev), reloc: r}
	var spans []Span
	for _, d := range decls {
		seg := d.seg
		if seg.Start == "" {
			continue
		}
		sp, found, err := l.locate(seg, spans)
		if err != nil {
			return nil, err
		}
		if !found {
			if d.optional {
				continue
			}
			return nil, &engine.PatchError{
				Code:    engine.ErrCodeMatchNotFound,
				Message: fmt.Sprintf("segment %s not found", seg.Type),
				Matcher: r.Command(seg.Start),
			}
		}
		spans = append(spans, sp)
	}

	sorted := append([]Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start <= sorted[i-1].End {
			return nil, engine.NewError(engine.ErrCodeIncompleteTemplate,
				"segments %s (%d-%d) and %s (%d-%d) overlap",
				sorted[i-1].Segment.Type, sorted[i-1].Start, sorted[i-1].End,
				sorted[i].Segment.Type, sorted[i].Start, sorted[i].End)
		}
	}
	return spans, nil
}

type locator struct {
	cat    *catalog.Catalog
	ev     *ir.Event
	params map[int][]ir.Parameter
	reloc  *Relocation
}

func (l *locator) compile(text string) (engine.LiteralMatcher, error) {
	return engine.CompileLiteral(l.cat, l.reloc.Command(text))
}

func (l *locator) matchAt(i int, m engine.LiteralMatcher) bool {
	return engine.Match(m, engine.View(l.cat, l.ev.Instructions[i], l.params[i]))
}

func (l *locator) locate(seg *config.CommandSegment, located []Span) (Span, bool, error) {
	from := 0
	if seg.PreSegment != "" {
		pre := -1
		for _, sp := range located {
			if sp.Segment.Type == seg.PreSegment {
				pre = sp.End
				break
			}
		}
		if pre < 0 {
			return Span{}, false, engine.NewError(engine.ErrCodeIncompleteTemplate,
				"segment %s: PreSegment %s must be declared and found first", seg.Type, seg.PreSegment)
		}
		from = pre + 1
	}

	var anchors []engine.LiteralMatcher
	for _, cmd := range seg.StartCommands() {
		m, err := l.compile(cmd)
		if err != nil {
			return Span{}, false, err
		}
		anchors = append(anchors, m)
	}

	n := len(l.ev.Instructions)
	var starts []int
	for i := from; i+len(anchors) <= n; i++ {
		ok := true
		for k, m := range anchors {
			if !l.matchAt(i+k, m) {
				ok = false
				break
			}
		}
		if ok {
			starts = append(starts, i)
		}
	}
	switch {
	case len(starts) == 0:
		return Span{}, false, nil
	case len(starts) > 1 && !seg.IgnoreMatch:
		return Span{}, false, &engine.PatchError{
			Code:    engine.ErrCodeIncompleteTemplate,
			Message: fmt.Sprintf("segment %s: start found %d times (at %v); set IgnoreMatch or PreSegment", seg.Type, len(starts), starts),
			Matcher: l.reloc.Command(seg.Start),
		}
	}

	sp := Span{Segment: seg, Start: starts[0], End: starts[0] + len(anchors) - 1}
	if seg.End == "" {
		return sp, true, nil
	}
	m, err := l.compile(seg.End)
	if err != nil {
		return Span{}, false, err
	}
	for i := sp.Start; i < n; i++ {
		if l.matchAt(i, m) {
			if i > sp.End {
				sp.End = i
			}
			return sp, true, nil
		}
	}
	return Span{}, false, nil
}

// Line filters.
const (
	encounterOnly = 1 << iota
	nonEncounterOnly
	moveOnly
	nonMoveOnly
)

// line is one source segment command with the filters that drop it.
type line struct {
	Text    string
	Filters int
}

// keep reports whether a line applies to a placement.
func (ln line) keep(encounter, moved bool) bool {
	switch {
	case ln.Filters&encounterOnly != 0 && !encounter:
		return false
	case ln.Filters&nonEncounterOnly != 0 && encounter:
		return false
	case ln.Filters&moveOnly != 0 && !moved:
		return false
	case ln.Filters&nonMoveOnly != 0 && moved:
		return false
	}
	return true
}

// SourceSegment is the content of one segment of a source entity.
type SourceSegment struct {
	Type    string
	Regions []string
	lines   []line
}

// Commands returns the segment's command text for a placement's
// encounter shape and movement, before relocation.
func (s *SourceSegment) Commands(encounter, moved bool) []string {
	var out []string
	for _, ln := range s.lines {
		if ln.keep(encounter, moved) {
			out = append(out, ln.Text)
		}
	}
	return out
}

// Library is the segment content of one source entity, read from the
// unpatched script that holds its event. It is immutable once built.
type Library struct {
	Entity   int64
	Map      string
	EventID  int64
	Template *config.EnemyTemplate
	// Kind is the effective dupe kind of the template.
	Kind     string
	Segments map[string]*SourceSegment
}

// Types returns the set of segment types the library has.
func (lib *Library) Types() map[string]bool {
	out := make(map[string]bool, len(lib.Segments))
	for t := range lib.Segments {
		out[t] = true
	}
	return out
}

// Substitute returns the source segment to put where the host has a
// segment of type typ, following the fallback table.
func (lib *Library) Substitute(typ string) (*SourceSegment, bool) {
	for _, t := range substitutes(typ) {
		if s, ok := lib.Segments[t]; ok {
			return s, true
		}
	}
	return nil, false
}

var fallbacks = map[string][]string{
	config.SegDead:       {config.SegDead, config.SegDisable},
	config.SegDisable:    {config.SegDisable, config.SegDead},
	config.SegSetup:      {config.SegSetup, config.SegAltSetup},
	config.SegStart:      {config.SegStart, config.SegQuickStart},
	config.SegQuickStart: {config.SegQuickStart, config.SegStart},
	config.SegEnd:        {config.SegEnd, config.SegEndPhase},
	config.SegEndPhase:   {config.SegEndPhase, config.SegEnd},
}

func substitutes(typ string) []string {
	if f, ok := fallbacks[typ]; ok {
		return f
	}
	return []string{typ}
}

// BuildLibrary reads the segments of tmpl from ev. Located segments take
// their content from the event; unanchored ones (altsetup) from their
// Commands. Remove segments have no content.
//
// args are the arguments ev is initialized with. The parameters a segment
// lists in Params are replaced by their values; args may be nil when no
// segment lists any.
func BuildLibrary(cat *catalog.Catalog, mapName string, ev *ir.Event, spec *config.EventSpec, tmpl *config.EnemyTemplate, defaults []*config.CommandSegment, args []int64) (*Library, error) {
	lib := &Library{
		Entity:   tmpl.Entity,
		Map:      mapName,
		EventID:  ev.ID,
		Template: tmpl,
		Kind:     spec.DupeKind(tmpl),
		Segments: make(map[string]*SourceSegment),
	}
	decls := mergeDefaults(tmpl.Segments, defaults)
	spans, err := locateSegments(cat, ev, decls, nil)
	if err != nil {
		return nil, err
	}
	located := make(map[*config.CommandSegment]Span, len(spans))
	for _, sp := range spans {
		located[sp.Segment] = sp
	}

	params := ir.ParamsByInstruction(ev)
	for _, d := range decls {
		seg := d.seg
		if seg.Type == config.SegRemove {
			continue
		}
		filters, err := compileFilters(cat, seg)
		if err != nil {
			return nil, err
		}
		bound, err := paramValues(seg, ev.ID, args)
		if err != nil {
			return nil, err
		}
		out := &SourceSegment{Type: seg.Type, Regions: append([]string(nil), seg.Regions...)}
		if sp, ok := located[seg]; ok {
			for i := sp.Start; i <= sp.End; i++ {
				instr := ev.Instructions[i]
				in := engine.View(cat, instr, params[i])
				text := engine.ReplaceWords(cat.Format(instr, params[i]), bound)
				out.lines = append(out.lines, line{Text: text, Filters: filters.of(in)})
			}
		} else if seg.Start == "" && len(seg.Commands) > 0 {
			for _, text := range seg.Commands {
				instr, ps, err := cat.ParseCommand(text)
				if err != nil {
					return nil, &engine.PatchError{Code: engine.ErrCodeInvalidCommand, Message: "segment " + seg.Type, Err: err}
				}
				text = engine.ReplaceWords(text, bound)
				out.lines = append(out.lines, line{Text: text, Filters: filters.of(engine.View(cat, instr, ps))})
			}
		} else {
			continue
		}
		lib.Segments[seg.Type] = out
	}
	return lib, nil
}

// paramValues maps each parameter seg lists in Params to the value it
// takes from args. Initializer arguments are 4-byte little-endian words;
// a narrower parameter reads its bytes within one.
func paramValues(seg *config.CommandSegment, eventID int64, args []int64) (map[string]string, error) {
	tokens := seg.ParamTokens()
	if len(tokens) == 0 {
		return nil, nil
	}
	if args == nil {
		return nil, engine.NewError(engine.ErrCodeUnresolvedParameter,
			"segment %s: Params needs the arguments event %d is initialized with", seg.Type, eventID)
	}
	out := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		src, width, ok := config.ParseArgToken(tok)
		if !ok || width < 1 || src%4+width > 4 {
			return nil, engine.NewError(engine.ErrCodeUnresolvedParameter, "segment %s: bad parameter %q", seg.Type, tok)
		}
		if src/4 >= len(args) {
			return nil, engine.NewError(engine.ErrCodeUnresolvedParameter,
				"segment %s: %s is past the %d arguments event %d is initialized with", seg.Type, tok, len(args), eventID)
		}
		word := uint32(args[src/4])
		v := int64(int32(word))
		if width < 4 {
			v = int64(word>>(8*(src%4))) & (1<<(8*width) - 1)
		}
		out[tok] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

// startArgs returns the arguments event id is initialized with in event 0
// of s: those of the initializer passing entity, or of its only
// initializer.
func startArgs(cat *catalog.Catalog, s *ir.Script, id, entity int64) ([]int64, error) {
	var found [][]int64
	if ev0 := s.Event(0); ev0 != nil {
		params := ir.ParamsByInstruction(ev0)
		for i, instr := range ev0.Instructions {
			in := engine.View(cat, instr, params[i])
			if in.IsInit() && in.Callee() == id {
				found = append(found, append([]int64(nil), in.InitArgs()...))
			}
		}
	}
	for _, args := range found {
		if slices.Contains(args, entity) {
			return args, nil
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}
	return nil, &engine.PatchError{
		Code:    engine.ErrCodeUnresolvedParameter,
		Message: fmt.Sprintf("%d initializers of event %d in event 0, none passing %d", len(found), id, entity),
		Map:     s.Map,
		EventID: id,
	}
}

// needsArgs reports whether any segment of tmpl or defaults lists Params.
func needsArgs(tmpl *config.EnemyTemplate, defaults []*config.CommandSegment) bool {
	for _, d := range mergeDefaults(tmpl.Segments, defaults) {
		if d.seg.Params != "" {
			return true
		}
	}
	return false
}

type filterSet [4][]engine.LiteralMatcher

func compileFilters(cat *catalog.Catalog, seg *config.CommandSegment) (filterSet, error) {
	var fs filterSet
	for bit, list := range [4][]string{seg.EncounterOnly, seg.NonEncounterOnly, seg.MoveOnly, seg.NonMoveOnly} {
		for _, text := range list {
			m, err := engine.CompileLiteral(cat, text)
			if err != nil {
				return fs, err
			}
			fs[bit] = append(fs[bit], m)
		}
	}
	return fs, nil
}

func (fs filterSet) of(in *engine.Instr) int {
	bits := 0
	for bit, ms := range fs {
		for _, m := range ms {
			if engine.Match(m, in) {
				bits |= 1 << bit
				break
			}
		}
	}
	return bits
}
