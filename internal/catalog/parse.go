package catalog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/evpatch/internal/ir"
)

// PlaceholderPattern matches parameter placeholder tokens (X<src>_<width>)
// as whole words.
var PlaceholderPattern = regexp.MustCompile(`\bX[0-9]+_[0-9]+\b`)

var (
	placeholderExact = regexp.MustCompile(`^X([0-9]+)_([0-9]+)$`)
	numericName      = regexp.MustCompile(`^([0-9]+)\[([0-9]+)\]$`)
)

// ParseCommand parses command text such as
//
//	SetEventFlag(X0_4, ON)
//	2003[66](0, 1000, 1)
//
// into an instruction and the parameters declared by its placeholder
// arguments. Argument values may be integers (decimal or 0x hex), floats,
// enum value names, or X<src>_<width> placeholders. A trailing semicolon
// is ignored.
func (c *Catalog) ParseCommand(text string) (*ir.Instruction, []ir.Parameter, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, nil, fmt.Errorf("parse command %q: expected Name(args)", text)
	}
	name := strings.TrimSpace(s[:open])
	body := strings.TrimSpace(s[open+1 : len(s)-1])

	doc, err := c.resolveName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("parse command %q: %w", text, err)
	}

	var args []string
	if body != "" {
		for _, a := range strings.Split(body, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	extra := len(args) - len(doc.Args)
	switch {
	case extra < 0:
		return nil, nil, fmt.Errorf("parse command %q: %s takes %d arguments, got %d", text, doc.Name, len(doc.Args), len(args))
	case extra > 0 && doc.Init == nil:
		return nil, nil, fmt.Errorf("parse command %q: %s takes %d arguments, got %d", text, doc.Name, len(doc.Args), len(args))
	}

	l := layoutFor(doc, extra)
	data := make([]byte, l.Size)
	var params []ir.Parameter

	for i, raw := range args {
		t := l.Types[i]
		off := l.Offsets[i]

		if m := placeholderExact.FindStringSubmatch(raw); m != nil {
			src, _ := strconv.ParseInt(m[1], 10, 64)
			w, _ := strconv.Atoi(m[2])
			if w < 1 || w > t.Width() {
				return nil, nil, fmt.Errorf("parse command %q: placeholder %s does not fit %d-byte argument %d", text, raw, t.Width(), i)
			}
			params = append(params, ir.Parameter{
				TargetStartByte: int64(off),
				SourceStartByte: src,
				ByteCount:       w,
			})
			continue
		}

		var enum string
		if i < len(doc.Args) {
			enum = doc.Args[i].Enum
		}
		v, err := c.parseValue(raw, t, enum)
		if err != nil {
			return nil, nil, fmt.Errorf("parse command %q: argument %d: %w", text, i, err)
		}
		writeValue(data[off:], t, v)
	}

	return &ir.Instruction{Bank: doc.Bank, ID: doc.ID, ArgData: data}, params, nil
}

func (c *Catalog) resolveName(name string) (*InstrDoc, error) {
	if m := numericName.FindStringSubmatch(name); m != nil {
		bank, _ := strconv.ParseInt(m[1], 10, 32)
		id, _ := strconv.ParseInt(m[2], 10, 32)
		doc, ok := c.Lookup(int32(bank), int32(id))
		if !ok {
			return nil, fmt.Errorf("undocumented instruction %s", name)
		}
		return doc, nil
	}
	doc, ok := c.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown instruction %q", name)
	}
	return doc, nil
}

func (c *Catalog) parseValue(raw string, t ArgType, enum string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty value")
	}
	if t == F32 {
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid float %q", raw)
		}
		return int64(math.Float32bits(float32(f))), nil
	}

	if v, err := strconv.ParseInt(raw, 0, 64); err == nil {
		if err := checkRange(v, t); err != nil {
			return 0, err
		}
		return v, nil
	}
	if enum != "" {
		if v, ok := c.enums[enum].ValueOf(raw); ok {
			return v, nil
		}
		return 0, fmt.Errorf("%q is not a value of %s", raw, enum)
	}
	if v, ok := c.global[fold(raw)]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("invalid value %q", raw)
}

// Format renders instr as command text. Arguments covered by one of params
// are written as their placeholder token; enum arguments use their value
// name when one is known. Undocumented instructions are written in
// bank[id] form with a hex argument dump.
func (c *Catalog) Format(instr *ir.Instruction, params []ir.Parameter) string {
	d, err := c.Decode(instr)
	if err != nil {
		return fmt.Sprintf("%s(%x)", instr.Key(), instr.ArgData)
	}

	byOffset := make(map[int64]ir.Parameter, len(params))
	for _, p := range params {
		byOffset[p.TargetStartByte] = p
	}

	parts := make([]string, len(d.Values))
	for i, v := range d.Values {
		if p, ok := byOffset[int64(d.Layout.Offsets[i])]; ok {
			parts[i] = p.Token()
			continue
		}
		t := d.Layout.Types[i]
		if t == F32 {
			parts[i] = strconv.FormatFloat(float64(d.Float(i)), 'g', -1, 32)
			continue
		}
		if i < len(d.Doc.Args) && d.Doc.Args[i].Enum != "" {
			if name, ok := c.enums[d.Doc.Args[i].Enum].NameOf(v); ok {
				parts[i] = name
				continue
			}
		}
		parts[i] = strconv.FormatInt(v, 10)
	}
	return d.Doc.Name + "(" + strings.Join(parts, ", ") + ")"
}
