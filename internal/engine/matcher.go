package engine

import (
	"bytes"
	"fmt"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
)

// Matcher is a predicate over instructions. The set of matchers is
// closed: AnyMatcher, InitMatcher, LiteralMatcher and BothMatcher.
type Matcher interface {
	fmt.Stringer
	matcher()
}

// AnyMatcher matches every instruction.
type AnyMatcher struct{}

// InitMatcher matches initializers by slot, callee, and passed arguments.
// Nil fields match anything. An initializer passing fewer arguments than
// Args lists does not match; one passing more does.
type InitMatcher struct {
	Index  *int64
	Callee *int64
	Args   []*int64
}

// LiteralMatcher matches one exact instruction. Parameter bytes are
// compared as zero on both sides.
type LiteralMatcher struct {
	Text string
	Bank int32
	ID   int32
	Args []byte
}

// BothMatcher requires both predicates.
type BothMatcher struct {
	Init    InitMatcher
	Literal LiteralMatcher
}

func (AnyMatcher) matcher()     {}
func (InitMatcher) matcher()    {}
func (LiteralMatcher) matcher() {}
func (BothMatcher) matcher()    {}

func (AnyMatcher) String() string { return "<any>" }

func (m InitMatcher) String() string {
	return (&config.InitMatcher{Index: m.Index, Callee: m.Callee, Arguments: m.Args}).String()
}

func (m LiteralMatcher) String() string { return m.Text }

func (m BothMatcher) String() string { return m.Init.String() + " && " + m.Literal.String() }

// CompileMatcher turns a configured matcher into a Matcher. A nil or empty
// configuration yields AnyMatcher. Literal instructions have their
// placeholder tokens replaced by 0 before parsing.
func CompileMatcher(cat *catalog.Catalog, m *config.InstructionMatcher) (Matcher, error) {
	if m == nil || (m.Init == nil && m.Instruction == "") {
		return AnyMatcher{}, nil
	}

	var init *InitMatcher
	if m.Init != nil {
		init = &InitMatcher{Index: m.Init.Index, Callee: m.Init.Callee, Args: m.Init.Arguments}
	}
	if m.Instruction == "" {
		return *init, nil
	}

	lit, err := CompileLiteral(cat, m.Instruction)
	if err != nil {
		return nil, err
	}
	if init == nil {
		return lit, nil
	}
	return BothMatcher{Init: *init, Literal: lit}, nil
}

// CompileLiteral parses command text into a LiteralMatcher.
func CompileLiteral(cat *catalog.Catalog, text string) (LiteralMatcher, error) {
	normalized := catalog.PlaceholderPattern.ReplaceAllString(text, "0")
	instr, _, err := cat.ParseCommand(normalized)
	if err != nil {
		return LiteralMatcher{}, wrapError(ErrCodeInvalidCommand, err, "matcher %q", text)
	}
	return LiteralMatcher{Text: text, Bank: instr.Bank, ID: instr.ID, Args: instr.ArgData}, nil
}

// Match evaluates m against in.
func Match(m Matcher, in *Instr) bool {
	switch m := m.(type) {
	case AnyMatcher:
		return true
	case InitMatcher:
		return matchInit(m, in)
	case LiteralMatcher:
		return matchLiteral(m, in)
	case BothMatcher:
		return matchInit(m.Init, in) && matchLiteral(m.Literal, in)
	default:
		panic(fmt.Sprintf("engine: unknown matcher %T", m))
	}
}

func matchInit(m InitMatcher, in *Instr) bool {
	if !in.IsInit() {
		return false
	}
	if m.Index != nil && in.Decoded.Values[0] != *m.Index {
		return false
	}
	if m.Callee != nil && in.Callee() != *m.Callee {
		return false
	}
	args := in.InitArgs()
	if len(args) < len(m.Args) {
		return false
	}
	for i, want := range m.Args {
		if want != nil && args[i] != *want {
			return false
		}
	}
	return true
}

func matchLiteral(m LiteralMatcher, in *Instr) bool {
	if in.Raw.Bank != m.Bank || in.Raw.ID != m.ID || len(in.Raw.ArgData) != len(m.Args) {
		return false
	}
	if len(in.Params) == 0 {
		return bytes.Equal(in.Raw.ArgData, m.Args)
	}
	return bytes.Equal(NormalizedArgs(in), m.Args)
}

// NormalizedArgs returns a copy of the instruction's argument bytes with
// every parameter-targeted byte range zeroed.
func NormalizedArgs(in *Instr) []byte {
	data := append([]byte(nil), in.Raw.ArgData...)
	for _, p := range in.Params {
		start := int(p.TargetStartByte)
		end := start + p.ByteCount
		if start < 0 || start >= len(data) {
			continue
		}
		if end > len(data) {
			end = len(data)
		}
		for i := start; i < end; i++ {
			data[i] = 0
		}
	}
	return data
}
