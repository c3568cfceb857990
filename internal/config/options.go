package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/evpatch/internal/expr"
)

// Options are the patch options that If expressions may reference.
type Options struct {
	Item       bool
	Enemy      bool
	Bosses     bool
	Minibosses bool
	Chests     bool
	DupeBosses bool
	RaceMode   bool
	NoRandom   bool
	EditText   bool
	Mats       bool
}

// optionFields is the only place option names are mapped to fields.
var optionFields = map[string]func(*Options) *bool{
	"item":       func(o *Options) *bool { return &o.Item },
	"enemy":      func(o *Options) *bool { return &o.Enemy },
	"bosses":     func(o *Options) *bool { return &o.Bosses },
	"minibosses": func(o *Options) *bool { return &o.Minibosses },
	"chests":     func(o *Options) *bool { return &o.Chests },
	"dupebosses": func(o *Options) *bool { return &o.DupeBosses },
	"racemode":   func(o *Options) *bool { return &o.RaceMode },
	"norandom":   func(o *Options) *bool { return &o.NoRandom },
	"edittext":   func(o *Options) *bool { return &o.EditText },
	"mats":       func(o *Options) *bool { return &o.Mats },
}

// OptionNames lists every option name, sorted.
func OptionNames() []string {
	names := make([]string, 0, len(optionFields))
	for n := range optionFields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the value of a named option.
func (o *Options) Lookup(name string) (bool, bool) {
	f, ok := optionFields[name]
	if !ok {
		return false, false
	}
	return *f(o), true
}

// Set assigns a named option.
func (o *Options) Set(name string, v bool) error {
	f, ok := optionFields[name]
	if !ok {
		return fmt.Errorf("unknown option %q", name)
	}
	*f(o) = v
	return nil
}

// Enabled lists the names of options that are on, sorted.
func (o *Options) Enabled() []string {
	var out []string
	for _, n := range OptionNames() {
		if *optionFields[n](o) {
			out = append(out, n)
		}
	}
	return out
}

// ParseOptions parses a space-separated list of enabled option names.
func ParseOptions(s string) (Options, error) {
	var o Options
	for _, name := range strings.Fields(s) {
		if err := o.Set(strings.ToLower(name), true); err != nil {
			return Options{}, err
		}
	}
	return o, nil
}

// IncludeFor reports whether a construct with this If expression applies
// under opts. An empty expression always applies.
func (b *Base) IncludeFor(opts *Options) (bool, error) {
	return IncludeFor(b.If, opts)
}

// IncludeFor evaluates cond against opts.
func IncludeFor(cond string, opts *Options) (bool, error) {
	if strings.TrimSpace(cond) == "" {
		return true, nil
	}
	return expr.Evaluate(cond, opts.Lookup)
}
