package engine

import (
	"strings"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/ir"
)

// Instr is the typed view of one raw instruction: its decoded argument
// values (when the catalog documents it), the parameter entries that
// target it, and whether it is an initializer.
type Instr struct {
	Raw     *ir.Instruction
	Decoded *catalog.Decoded // nil for undocumented instructions
	Params  []ir.Parameter
}

// View builds the typed view of instr. Instructions the catalog does not
// document, or whose argument block does not fit their documentation,
// get a view with no decoded values.
func View(cat *catalog.Catalog, instr *ir.Instruction, params []ir.Parameter) *Instr {
	in := &Instr{Raw: instr, Params: params}
	if d, err := cat.Decode(instr); err == nil {
		in.Decoded = d
	}
	return in
}

// IsInit reports whether the instruction starts another event.
func (in *Instr) IsInit() bool {
	return in.Decoded != nil && in.Decoded.Doc.Init != nil
}

// Callee returns the id of the event an initializer starts.
func (in *Instr) Callee() int64 {
	if !in.IsInit() {
		return 0
	}
	return in.Decoded.Values[in.Decoded.Doc.Init.Callee]
}

// InitArgs returns the argument values an initializer passes to its
// callee.
func (in *Instr) InitArgs() []int64 {
	if !in.IsInit() {
		return nil
	}
	return in.Decoded.Values[in.Decoded.Doc.Init.Offset:]
}

// Name returns the documented instruction name, or its bank[id] key.
func (in *Instr) Name() string {
	if in.Decoded == nil {
		return in.Raw.Key()
	}
	return in.Decoded.Doc.Name
}

// ArgIndex resolves a parameter locator to an argument index.
func (in *Instr) ArgIndex(p config.InstructionParameter) (int, error) {
	if p.Forms() > 1 {
		return 0, NewError(ErrCodeUnresolvedParameter, "can't set multiple parameter forms at once (%s)", describeForms(p))
	}
	if in.Decoded == nil {
		return 0, NewError(ErrCodeUnresolvedParameter, "instruction %s is not documented", in.Raw.Key())
	}
	n := len(in.Decoded.Values)

	var idx int
	switch {
	case p.Index != nil:
		idx = *p.Index
	case p.Name != "":
		idx = in.Decoded.Doc.ArgIndex(p.Name)
		if idx < 0 {
			return 0, &PatchError{
				Code:    ErrCodeUnresolvedParameter,
				Message: "instruction " + in.Name() + " has no argument " + p.Name,
				Details: map[string]string{"arguments": strings.Join(in.Decoded.Doc.ArgNames(), ", ")},
			}
		}
	case p.InitArg != nil:
		if !in.IsInit() {
			return 0, NewError(ErrCodeUnresolvedParameter, "InitArg requires an initializer, got %s", in.Name())
		}
		idx = in.Decoded.Doc.Init.Offset + *p.InitArg
	default:
		return 0, NewError(ErrCodeUnresolvedParameter, "no parameter provided")
	}

	if idx < 0 || idx >= n {
		return 0, NewError(ErrCodeUnresolvedParameter, "argument %d out of range for %s (%d arguments)", idx, in.Name(), n)
	}
	return idx, nil
}

func describeForms(p config.InstructionParameter) string {
	var parts []string
	if p.Index != nil {
		parts = append(parts, "Index")
	}
	if p.Name != "" {
		parts = append(parts, "Name")
	}
	if p.InitArg != nil {
		parts = append(parts, "InitArg")
	}
	return strings.Join(parts, ", ")
}
