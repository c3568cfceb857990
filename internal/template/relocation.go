package template

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
)

// conditionGroupEnum is the enum naming condition group arguments.
const conditionGroupEnum = "Condition Group"

// firstDupeGroup is the first condition group number handed to
// duplicates. Authored events use the low groups.
const firstDupeGroup = 12

// maxGroup is the largest condition group number.
const maxGroup = 15

// Relocation maps the ids of one placement from source to target.
//
// Existing instructions are relocated by value (RelocateEvent); command
// text is relocated word by word (Command). Both forms agree.
type Relocation struct {
	// IDs maps entity, flag and region ids.
	IDs map[int64]int64
	// Groups maps condition group values (OR_01 is -1, AND_02 is 2).
	Groups map[int64]int64
	// ArgsOnly limits the relocation to initializer arguments. Event
	// bodies and command text are left as they are.
	ArgsOnly bool

	words map[string]string
}

// NewRelocation builds the relocation of entity from for placement pl
// under dupe kind.
//
// A main placement maps from to the target plus every Reloc entry. For a
// duplicate, kind decides: none keeps every id; replace maps every entity
// in dupes to its duplicate at pl.DupeIndex, and from to the target, in
// initializer arguments only; rewrite maps the entity, every Reloc entry,
// and the template's condition groups to groups 12 and up so they do not
// collide with the authored ones.
func NewRelocation(from int64, pl *config.Placement, kind string, dupe *config.Dupe, dupes map[int64][]int64) (*Relocation, error) {
	r := &Relocation{IDs: make(map[int64]int64), Groups: make(map[int64]int64)}
	if pl.IsDupe() && kind == config.DupeNone {
		return r, nil
	}
	if pl.IsDupe() && kind == config.DupeReplace {
		r.ArgsOnly = true
		for id, list := range dupes {
			if pl.DupeIndex < len(list) && list[pl.DupeIndex] != id {
				r.IDs[id] = list[pl.DupeIndex]
			}
		}
		if _, ok := r.IDs[from]; !ok && from != pl.Target {
			r.IDs[from] = pl.Target
		}
		return r, nil
	}
	if from != pl.Target {
		r.IDs[from] = pl.Target
	}
	for k, v := range pl.Reloc {
		r.IDs[k] = v
	}
	if !pl.IsDupe() || kind != config.DupeRewrite {
		return r, nil
	}

	extra, err := config.ParseIDs(dupeEntities(dupe))
	if err != nil {
		return nil, err
	}
	for _, id := range extra {
		if _, ok := r.IDs[id]; !ok {
			return nil, fmt.Errorf("duplicate of %d: no relocation for helper entity %d", from, id)
		}
	}
	for p, name := range dupe.ConditionGroups() {
		v, err := ParseConditionGroup(name)
		if err != nil {
			return nil, err
		}
		n := int64(firstDupeGroup + p)
		if n > maxGroup {
			return nil, fmt.Errorf("condition group %s: no free group for duplicates", name)
		}
		if v < 0 {
			n = -n
		}
		r.Groups[v] = n
	}
	return r, nil
}

func dupeEntities(d *config.Dupe) string {
	if d == nil {
		return ""
	}
	return d.Entity
}

// ParseConditionGroup parses OR_<n> and AND_<n>. OR groups are negative.
func ParseConditionGroup(name string) (int64, error) {
	prefix, num, ok := strings.Cut(name, "_")
	n, err := strconv.ParseInt(num, 10, 64)
	if !ok || err != nil || n < 1 || n > maxGroup {
		return 0, fmt.Errorf("invalid condition group %q", name)
	}
	switch prefix {
	case "OR":
		return -n, nil
	case "AND":
		return n, nil
	}
	return 0, fmt.Errorf("invalid condition group %q", name)
}

// ConditionGroupName is the inverse of ParseConditionGroup.
func ConditionGroupName(v int64) string {
	if v < 0 {
		return fmt.Sprintf("OR_%02d", -v)
	}
	return fmt.Sprintf("AND_%02d", v)
}

// Empty reports whether the relocation changes nothing.
func (r *Relocation) Empty() bool {
	return r == nil || (len(r.IDs) == 0 && len(r.Groups) == 0)
}

// ID relocates one id.
func (r *Relocation) ID(v int64) int64 {
	if r == nil {
		return v
	}
	if t, ok := r.IDs[v]; ok {
		return t
	}
	return v
}

// Words returns the relocation as a whole-word substitution table.
func (r *Relocation) Words() map[string]string {
	if r == nil {
		return nil
	}
	if r.words == nil {
		w := make(map[string]string, len(r.IDs)+len(r.Groups))
		for k, v := range r.IDs {
			w[strconv.FormatInt(k, 10)] = strconv.FormatInt(v, 10)
		}
		for k, v := range r.Groups {
			w[ConditionGroupName(k)] = ConditionGroupName(v)
		}
		r.words = w
	}
	return r.words
}

// Command relocates command text.
func (r *Relocation) Command(text string) string {
	if r.Empty() || r.ArgsOnly {
		return text
	}
	return engine.ReplaceWords(text, r.Words())
}

// Commands relocates a list of commands.
func (r *Relocation) Commands(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = r.Command(t)
	}
	return out
}

// String lists the mapping in id order, for logs.
func (r *Relocation) String() string {
	if r.Empty() {
		return "{}"
	}
	keys := make([]int64, 0, len(r.IDs))
	for k := range r.IDs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	parts := make([]string, 0, len(keys)+len(r.Groups))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d->%d", k, r.IDs[k]))
	}
	groups := make([]int64, 0, len(r.Groups))
	for k := range r.Groups {
		groups = append(groups, k)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	for _, k := range groups {
		parts = append(parts, ConditionGroupName(k)+"->"+ConditionGroupName(r.Groups[k]))
	}
	if r.ArgsOnly {
		parts = append(parts, "args")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// value returns the relocated value of argument k of d, if it changes.
// Only 4-byte integer arguments carry ids; only condition group
// arguments carry groups.
func (r *Relocation) value(d *catalog.Decoded, k int) (int64, bool) {
	v := d.Values[k]
	t := d.Layout.Types[k]
	if k < len(d.Doc.Args) && d.Doc.Args[k].Enum == conditionGroupEnum {
		nv, ok := r.Groups[v]
		return nv, ok
	}
	if t == catalog.F32 || t.Width() != 4 {
		return 0, false
	}
	nv, ok := r.IDs[v]
	return nv, ok && nv != v
}
