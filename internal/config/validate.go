package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/evpatch/internal/expr"
)

// Validation error codes (E100-E199)
const (
	// Document errors (E100-E109)
	ErrSchema = "E100" // document does not match the schema
	ErrDecode = "E101" // document could not be decoded

	// Edit errors (E110-E119)
	ErrAmbiguousEdit    = "E110" // more than one mutation kind on an edit
	ErrEmptyEdit        = "E111" // no mutation kind on an edit
	ErrRegionMisuse     = "E112" // Set or Remove: All applied to a region
	ErrParameterLocator = "E113" // parameter locator sets zero or several forms
	ErrInvalidMatchLen  = "E114" // MatchLength below 1
	ErrEmptyMatcher     = "E115" // matcher with neither Init nor Instruction

	// Event errors (E120-E129)
	ErrInvalidArgName  = "E120" // argument name not alphanumeric or duplicated
	ErrInvalidArgWidth = "E121" // argument width outside 1-4
	ErrInvalidIf       = "E122" // If expression does not parse or names unknown options
	ErrDuplicateName   = "E123" // event name reused within a map
	ErrInitializerRef  = "E124" // initializer target missing or ambiguous
	ErrInvalidRest     = "E125" // unknown rest behavior

	// Template errors (E130-E139)
	ErrTemplateType   = "E130" // unknown template or segment type
	ErrDupeSegment    = "E131" // segment type declared twice in one template
	ErrReplaceSyntax  = "E132" // Replace is not "<old> -> <new>"
	ErrPlaceholderArg = "E133" // argument list entry is not a usable X<src>_<width> token
	ErrInvalidIDList  = "E134" // id list does not parse
	ErrSegmentAnchor  = "E135" // segment anchor settings are inconsistent
	ErrDupeReplace    = "E136" // replace dupe without argument positions, or with segments

	// Assignment errors (E140-E149)
	ErrPlacement = "E140" // placement is incomplete or writes an event twice
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	placeholderToken = regexp.MustCompile(`^X[0-9]+_[0-9]+$`)
	enemyTypes       = map[string]bool{
		TemplateChr: true, TemplateMultiChr: true, TemplateLoc: true, TemplateStart: true,
		TemplateEnd: true, TemplateRemove: true, TemplateSegment: true, TemplateDefault: true,
	}
)

// Validate runs semantic checks over a decoded document.
// Returns all errors found (does not fail-fast).
func Validate(cfg *EventConfig) []ValidationError {
	var errs []ValidationError

	for _, m := range sortedMapKeys(cfg.NewEvents) {
		names := make(map[string]bool)
		for i, ev := range cfg.NewEvents[m] {
			field := fmt.Sprintf("NewEvents.%s[%d]", m, i)
			errs = append(errs, validateIf(field, ev.If)...)
			errs = append(errs, validateArguments(field, ev.Arguments)...)
			if ev.Rest != "" && ev.Rest != "Default" && ev.Rest != "Restart" && ev.Rest != "End" {
				errs = append(errs, ValidationError{
					Field:   field + ".Rest",
					Message: fmt.Sprintf("invalid rest behavior %q", ev.Rest),
					Code:    ErrInvalidRest,
				})
			}
			errs = append(errs, checkName(field, ev.Name, names)...)
		}
	}

	for _, m := range sortedMapKeys(cfg.ExistingEvents) {
		names := make(map[string]bool)
		for _, ne := range cfg.NewEvents[m] {
			if ne.Name != "" {
				names[ne.Name] = true
			}
		}
		for _, ev := range cfg.ExistingEvents[m] {
			field := fmt.Sprintf("ExistingEvents.%s.%d", m, ev.ID)
			errs = append(errs, validateIf(field, ev.If)...)
			errs = append(errs, checkName(field, ev.Name, names)...)
			for j, edit := range ev.Edits {
				errs = append(errs, ValidateEdit(fmt.Sprintf("%s.Edits[%d]", field, j), edit)...)
			}
		}
	}

	for _, m := range sortedMapKeys(cfg.Initialize) {
		named := cfg.EventNames(m)
		for i, init := range cfg.Initialize[m] {
			field := fmt.Sprintf("Initialize.%s[%d]", m, i)
			switch {
			case init.ID != nil && init.Name != "":
				errs = append(errs, ValidationError{Field: field, Message: "set only one of ID and Name", Code: ErrInitializerRef})
			case init.ID == nil && init.Name == "":
				errs = append(errs, ValidationError{Field: field, Message: "one of ID or Name is required", Code: ErrInitializerRef})
			case init.Name != "" && !named[init.Name]:
				errs = append(errs, ValidationError{
					Field:   field + ".Name",
					Message: fmt.Sprintf("no event named %q in map %s", init.Name, m),
					Code:    ErrInitializerRef,
				})
			}
		}
	}

	for i, seg := range cfg.DefaultSegments {
		errs = append(errs, validateSegment(fmt.Sprintf("DefaultSegments[%d]", i), seg)...)
	}
	for i, spec := range cfg.EnemyEvents {
		errs = append(errs, validateEnemySpec(fmt.Sprintf("EnemyEvents[%d]", i), spec)...)
	}
	for i, spec := range cfg.ItemEvents {
		errs = append(errs, validateItemSpec(fmt.Sprintf("ItemEvents[%d]", i), spec)...)
	}

	return errs
}

// EventNames returns the names registered by new and existing events in
// map m.
func (c *EventConfig) EventNames(m string) map[string]bool {
	names := make(map[string]bool)
	for _, ev := range c.NewEvents[m] {
		if ev.Name != "" {
			names[ev.Name] = true
		}
	}
	for _, ev := range c.ExistingEvents[m] {
		if ev.Name != "" {
			names[ev.Name] = true
		}
	}
	return names
}

// ValidateEdit checks one edit's shape: one mutation kind, a single
// parameter locator form, and no region on kinds that act on one
// instruction.
func ValidateEdit(field string, edit *EventEdit) []ValidationError {
	var errs []ValidationError

	kinds := edit.Kinds()
	switch {
	case len(kinds) > 1:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("each edit may make only one change, got %s", strings.Join(kinds, ", ")),
			Code:    ErrAmbiguousEdit,
		})
	case len(kinds) == 0:
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "edit makes no change (set one of Set, Remove, AddBefore, AddAfter)",
			Code:    ErrEmptyEdit,
		})
	}

	if edit.MatchLength < 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".MatchLength",
			Message: fmt.Sprintf("match length must be at least 1, got %d", edit.MatchLength),
			Code:    ErrInvalidMatchLen,
		})
	}
	if edit.Match != nil && edit.Match.Init == nil && edit.Match.Instruction == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".Match",
			Message: "matcher has neither Init nor Instruction",
			Code:    ErrEmptyMatcher,
		})
	}

	regionless := ""
	if edit.Set != nil {
		regionless = "Set"
	} else if edit.Remove == RemoveAll {
		regionless = "Remove: All"
	}
	if regionless != "" && (edit.Match == nil || edit.MatchLength != 1) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("edit action %s doesn't apply to a region", regionless),
			Code:    ErrRegionMisuse,
		})
	}

	if edit.Set != nil && edit.Set.Param.Forms() != 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".Set.Param",
			Message: fmt.Sprintf("set exactly one of Index, Name, InitArg (got %d)", edit.Set.Param.Forms()),
			Code:    ErrParameterLocator,
		})
	}
	return errs
}

// ValidArgumentName reports whether name is a non-empty run of letters
// and digits.
func ValidArgumentName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func validateArguments(field string, args []*EventArgument) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, a := range args {
		f := fmt.Sprintf("%s.Arguments[%d]", field, i)
		if !ValidArgumentName(a.Name) {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("argument %q must be alphanumeric", a.Name),
				Code:    ErrInvalidArgName,
			})
		} else if seen[a.Name] {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("duplicate argument %q", a.Name),
				Code:    ErrInvalidArgName,
			})
		}
		seen[a.Name] = true
		if a.Width < 1 || a.Width > 4 {
			errs = append(errs, ValidationError{
				Field:   f + ".Width",
				Message: fmt.Sprintf("width must be 1 to 4, got %d", a.Width),
				Code:    ErrInvalidArgWidth,
			})
		}
		errs = append(errs, validateIf(f, a.If)...)
	}
	return errs
}

func validateIf(field, cond string) []ValidationError {
	if cond == "" {
		return nil
	}
	names, err := expr.Check(cond)
	if err != nil {
		return []ValidationError{{Field: field + ".If", Message: err.Error(), Code: ErrInvalidIf}}
	}
	var errs []ValidationError
	for _, n := range names {
		if _, ok := (&Options{}).Lookup(n); !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".If",
				Message: fmt.Sprintf("unknown option %q", n),
				Code:    ErrInvalidIf,
			})
		}
	}
	return errs
}

func checkName(field, name string, names map[string]bool) []ValidationError {
	if name == "" {
		return nil
	}
	if names[name] {
		return []ValidationError{{
			Field:   field + ".Name",
			Message: fmt.Sprintf("event name %q is already used in this map", name),
			Code:    ErrDuplicateName,
		}}
	}
	names[name] = true
	return nil
}

func validateEnemySpec(field string, spec *EventSpec) []ValidationError {
	var errs []ValidationError
	if _, err := spec.EntityList(); err != nil {
		errs = append(errs, ValidationError{Field: field + ".Entities", Message: err.Error(), Code: ErrInvalidIDList})
	}
	for i, t := range spec.Template {
		f := fmt.Sprintf("%s.Template[%d]", field, i)
		if !enemyTypes[t.BaseType()] {
			errs = append(errs, ValidationError{
				Field:   f + ".Type",
				Message: fmt.Sprintf("unknown template type %q", t.Type),
				Code:    ErrTemplateType,
			})
		}
		if _, err := ParseIDs(t.Entities); err != nil {
			errs = append(errs, ValidationError{Field: f + ".Entities", Message: err.Error(), Code: ErrInvalidIDList})
		}
		if t.Dupe != nil {
			if _, err := ParseIDs(t.Dupe.Entity); err != nil {
				errs = append(errs, ValidationError{Field: f + ".Dupe.Entity", Message: err.Error(), Code: ErrInvalidIDList})
			}
		}
		if t.Replace != "" {
			if _, _, err := SplitReplace(t.Replace); err != nil {
				errs = append(errs, ValidationError{Field: f + ".Replace", Message: err.Error(), Code: ErrReplaceSyntax})
			}
		}
		errs = append(errs, argTokenErrors(f+".ArgEntities", t.ArgEntities, 0, true)...)
		errs = append(errs, argTokenErrors(f+".ArgFlags", t.ArgFlags, 0, true)...)
		if spec.DupeKind(t) == DupeReplace {
			if len(t.ArgTokens()) == 0 {
				errs = append(errs, ValidationError{
					Field:   f + ".Dupe",
					Message: "replace relocates initializer arguments only; list them in ArgEntities or ArgFlags",
					Code:    ErrDupeReplace,
				})
			}
			if len(t.Segments) > 0 {
				errs = append(errs, ValidationError{
					Field:   f + ".Dupe",
					Message: "replace leaves commands unrelocated; segment templates use rewrite",
					Code:    ErrDupeReplace,
				})
			}
		}
		seen := make(map[string]bool)
		for j, seg := range t.Segments {
			sf := fmt.Sprintf("%s.Segments[%d]", f, j)
			errs = append(errs, validateSegment(sf, seg)...)
			if seg.Type != SegRemove && seen[seg.Type] {
				errs = append(errs, ValidationError{
					Field:   sf + ".Type",
					Message: fmt.Sprintf("segment type %q declared twice", seg.Type),
					Code:    ErrDupeSegment,
				})
			}
			seen[seg.Type] = true
		}
	}
	return errs
}

func validateSegment(field string, seg *CommandSegment) []ValidationError {
	var errs []ValidationError
	if !IsSegmentType(seg.Type) {
		errs = append(errs, ValidationError{
			Field:   field + ".Type",
			Message: fmt.Sprintf("unknown segment type %q", seg.Type),
			Code:    ErrTemplateType,
		})
	}
	if seg.Type != SegAltSetup && seg.Start == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".Start",
			Message: fmt.Sprintf("%s segment needs a Start anchor", seg.Type),
			Code:    ErrSegmentAnchor,
		})
	}
	if seg.End != "" && seg.Start == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".End",
			Message: "End requires Start",
			Code:    ErrSegmentAnchor,
		})
	}
	return append(errs, argTokenErrors(field+".Params", seg.Params, 0, false)...)
}

func validateItemSpec(field string, spec *EventSpec) []ValidationError {
	var errs []ValidationError
	for i, t := range spec.ItemTemplate {
		f := fmt.Sprintf("%s.ItemTemplate[%d]", field, i)
		if _, err := ParseIDs(t.EventFlag); err != nil {
			errs = append(errs, ValidationError{Field: f + ".EventFlag", Message: err.Error(), Code: ErrInvalidIDList})
		}
		errs = append(errs, argTokenErrors(f+".EventFlagArg", t.EventFlagArg, 2, true)...)
		errs = append(errs, argTokenErrors(f+".RemoveArg", t.RemoveArg, 1, true)...)
		if t.Replace != "" {
			if _, _, err := SplitReplace(t.Replace); err != nil {
				errs = append(errs, ValidationError{Field: f + ".Replace", Message: err.Error(), Code: ErrReplaceSyntax})
			}
		}
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// argTokenErrors checks a space-separated list of X<src>_<width> tokens.
// limit bounds the number of tokens when positive. With whole set, every
// token must name a complete 4-byte initializer argument; otherwise it
// must stay within one.
func argTokenErrors(field, list string, limit int, whole bool) []ValidationError {
	var errs []ValidationError
	tokens := strings.Fields(list)
	if limit > 0 && len(tokens) > limit {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("at most %d argument(s), got %d", limit, len(tokens)),
			Code:    ErrPlaceholderArg,
		})
	}
	for _, tok := range tokens {
		src, width, ok := ParseArgToken(tok)
		var msg string
		switch {
		case !ok:
			msg = fmt.Sprintf("%q is not an X<src>_<width> argument", tok)
		case whole && (src%4 != 0 || width != 4):
			msg = fmt.Sprintf("%q is not a whole 4-byte argument", tok)
		case width < 1 || src%4+width > 4:
			msg = fmt.Sprintf("%q spans two arguments", tok)
		default:
			continue
		}
		errs = append(errs, ValidationError{Field: field, Message: msg, Code: ErrPlaceholderArg})
	}
	return errs
}

// ParseArgToken splits an X<src>_<width> token into its byte offset and
// width.
func ParseArgToken(tok string) (src, width int, ok bool) {
	if !placeholderToken.MatchString(tok) {
		return 0, 0, false
	}
	a, b, _ := strings.Cut(tok[1:], "_")
	src, err1 := strconv.Atoi(a)
	width, err2 := strconv.Atoi(b)
	return src, width, err1 == nil && err2 == nil
}

func sortedMapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
