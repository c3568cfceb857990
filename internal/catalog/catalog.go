// Package catalog provides instruction metadata for event scripts.
//
// A Catalog is loaded from an EMEDF-style JSON document that names every
// instruction bank/id, its arguments with their types, and the enums used
// by those arguments. It is the collaborator the patch engine uses to turn
// command text into instruction records and back, and to decode argument
// values by position or by name.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"golang.org/x/text/cases"
)

// ArgType is an EMEDF argument type code.
type ArgType int

const (
	U8  ArgType = 0
	U16 ArgType = 1
	U32 ArgType = 2
	S8  ArgType = 3
	S16 ArgType = 4
	S32 ArgType = 5
	F32 ArgType = 6
	// U32Alt is the second unsigned 32-bit code some EMEDF files use.
	U32Alt ArgType = 8
)

// Width returns the argument's byte width.
func (t ArgType) Width() int {
	switch t {
	case U8, S8:
		return 1
	case U16, S16:
		return 2
	default:
		return 4
	}
}

// Signed reports whether the type is a signed integer.
func (t ArgType) Signed() bool {
	return t == S8 || t == S16 || t == S32
}

func (t ArgType) valid() bool {
	switch t {
	case U8, U16, U32, S8, S16, S32, F32, U32Alt:
		return true
	}
	return false
}

// ArgDoc documents one instruction argument.
type ArgDoc struct {
	Name string  `json:"name"`
	Type ArgType `json:"type"`
	Enum string  `json:"enum_name,omitempty"`
}

// InitDoc marks an instruction as an initializer: it starts the event whose
// id is argument Callee, passing every argument from index Offset onward.
type InitDoc struct {
	Callee int `json:"callee"`
	Offset int `json:"offset"`
}

// InstrDoc documents one instruction.
type InstrDoc struct {
	Bank int32
	ID   int32
	Name string
	Args []ArgDoc
	Init *InitDoc
}

// ArgIndex returns the index of the argument called name, or -1.
func (d *InstrDoc) ArgIndex(name string) int {
	for i, a := range d.Args {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// ArgNames lists the documented argument names.
func (d *InstrDoc) ArgNames() []string {
	names := make([]string, len(d.Args))
	for i, a := range d.Args {
		names[i] = a.Name
	}
	return names
}

// Enum maps enum value names to integers.
type Enum struct {
	Name    string
	byValue map[int64]string
	byName  map[string]int64 // folded
}

// NameOf returns the name of value v.
func (e *Enum) NameOf(v int64) (string, bool) {
	s, ok := e.byValue[v]
	return s, ok
}

// ValueOf returns the value named s (case-insensitive).
func (e *Enum) ValueOf(s string) (int64, bool) {
	v, ok := e.byName[fold(s)]
	return v, ok
}

// Catalog is the instruction metadata for one game.
// A Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	docs   map[[2]int32]*InstrDoc
	names  map[string]*InstrDoc // folded
	enums  map[string]*Enum
	global map[string]int64 // folded enum value names that are unambiguous across enums
}

type fileFormat struct {
	MainClasses []struct {
		Name   string `json:"name"`
		Index  int32  `json:"index"`
		Instrs []struct {
			Name  string   `json:"name"`
			Index int32    `json:"index"`
			Args  []ArgDoc `json:"args"`
		} `json:"instrs"`
	} `json:"main_classes"`
	Enums []struct {
		Name   string            `json:"name"`
		Values map[string]string `json:"values"`
	} `json:"enums"`
	Initializers []struct {
		Bank   int32 `json:"bank"`
		ID     int32 `json:"id"`
		Callee int   `json:"callee"`
		Offset int   `json:"offset"`
	} `json:"initializers"`
}

// DefaultInitializers are used when the catalog document declares none:
// InitializeEvent(slot, eventId, args...) and
// InitializeCommonEvent(unused, eventId, args...).
var DefaultInitializers = map[[2]int32]InitDoc{
	{2000, 0}: {Callee: 1, Offset: 2},
	{2000, 6}: {Callee: 1, Offset: 2},
}

// Load reads a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var f fileFormat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	c := &Catalog{
		docs:   make(map[[2]int32]*InstrDoc),
		names:  make(map[string]*InstrDoc),
		enums:  make(map[string]*Enum),
		global: make(map[string]int64),
	}

	ambiguous := make(map[string]bool)
	for _, e := range f.Enums {
		enum := &Enum{Name: e.Name, byValue: make(map[int64]string), byName: make(map[string]int64)}
		for raw, name := range e.Values {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("load catalog: enum %s: value %q: %w", e.Name, raw, err)
			}
			enum.byValue[v] = name
			enum.byName[fold(name)] = v
			if prev, ok := c.global[fold(name)]; ok && prev != v {
				ambiguous[fold(name)] = true
			}
			c.global[fold(name)] = v
		}
		c.enums[e.Name] = enum
	}
	for name := range ambiguous {
		delete(c.global, name)
	}

	for _, class := range f.MainClasses {
		for _, in := range class.Instrs {
			doc := &InstrDoc{Bank: class.Index, ID: in.Index, Name: in.Name, Args: in.Args}
			for _, a := range doc.Args {
				if !a.Type.valid() {
					return nil, fmt.Errorf("load catalog: %s: argument %s: unknown type %d", in.Name, a.Name, a.Type)
				}
				if a.Enum != "" && c.enums[a.Enum] == nil {
					return nil, fmt.Errorf("load catalog: %s: argument %s: unknown enum %q", in.Name, a.Name, a.Enum)
				}
			}
			key := [2]int32{class.Index, in.Index}
			if _, dup := c.docs[key]; dup {
				return nil, fmt.Errorf("load catalog: duplicate instruction %d[%02d]", key[0], key[1])
			}
			c.docs[key] = doc
			c.names[fold(in.Name)] = doc
		}
	}

	inits := make(map[[2]int32]InitDoc)
	if len(f.Initializers) == 0 {
		inits = DefaultInitializers
	}
	for _, i := range f.Initializers {
		inits[[2]int32{i.Bank, i.ID}] = InitDoc{Callee: i.Callee, Offset: i.Offset}
	}
	for key, init := range inits {
		doc, ok := c.docs[key]
		if !ok {
			continue
		}
		if init.Callee >= len(doc.Args) || init.Offset > len(doc.Args) {
			return nil, fmt.Errorf("load catalog: initializer %s: callee/offset out of range", doc.Name)
		}
		init := init
		doc.Init = &init
	}

	return c, nil
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns the documentation for bank[id].
func (c *Catalog) Lookup(bank, id int32) (*InstrDoc, bool) {
	d, ok := c.docs[[2]int32{bank, id}]
	return d, ok
}

// ByName returns the documentation for a named instruction
// (case-insensitive).
func (c *Catalog) ByName(name string) (*InstrDoc, bool) {
	d, ok := c.names[fold(name)]
	return d, ok
}

// Enum returns a named enum.
func (c *Catalog) Enum(name string) (*Enum, bool) {
	e, ok := c.enums[name]
	return e, ok
}

// Initializers lists the documented initializer instructions in bank/id
// order.
func (c *Catalog) Initializers() []*InstrDoc {
	var out []*InstrDoc
	for _, d := range c.docs {
		if d.Init != nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bank != out[j].Bank {
			return out[i].Bank < out[j].Bank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// fold normalizes a name for case-insensitive lookup. A Caser is stateful,
// so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
