package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/evpatch/internal/config"
)

// PackedArgument is an event argument with its assigned byte range.
type PackedArgument struct {
	Name   string
	Offset int
	Width  int
}

// Token returns the placeholder token X<offset>_<width>.
func (p PackedArgument) Token() string {
	return fmt.Sprintf("X%d_%d", p.Offset, p.Width)
}

// PackOffsets assigns byte offsets to a list of argument widths. Offsets
// increase in declaration order and no argument crosses a 4-byte
// boundary: if one would, it starts at the next multiple of 4 instead.
func PackOffsets(widths []int) []int {
	offsets := make([]int, len(widths))
	total := 0
	for i, w := range widths {
		if total%4+w > 4 {
			total += 4 - total%4
		}
		offsets[i] = total
		total += w
	}
	return offsets
}

// PackArguments validates and packs a new event's argument declarations.
// Names must be alphanumeric and unique; widths must be 1 to 4.
func PackArguments(args []*config.EventArgument) ([]PackedArgument, error) {
	widths := make([]int, len(args))
	seen := make(map[string]bool, len(args))
	for i, a := range args {
		if !config.ValidArgumentName(a.Name) {
			return nil, NewError(ErrCodeInvalidArgumentName, "argument %q must be alphanumeric", a.Name)
		}
		if seen[a.Name] {
			return nil, NewError(ErrCodeInvalidArgumentName, "argument %q is declared twice", a.Name)
		}
		seen[a.Name] = true
		if a.Width < 1 || a.Width > 4 {
			return nil, NewError(ErrCodeInvalidArgumentName, "argument %q has width %d, want 1 to 4", a.Name, a.Width)
		}
		widths[i] = a.Width
	}

	offsets := PackOffsets(widths)
	packed := make([]PackedArgument, len(args))
	for i, a := range args {
		packed[i] = PackedArgument{Name: a.Name, Offset: offsets[i], Width: widths[i]}
	}
	return packed, nil
}

// SubstituteArguments replaces whole-word occurrences of each argument
// name in commands with the argument's token.
func SubstituteArguments(commands []string, packed []PackedArgument) []string {
	if len(packed) == 0 {
		return append([]string(nil), commands...)
	}
	repl := make(map[string]string, len(packed))
	for _, p := range packed {
		repl[p.Name] = p.Token()
	}
	out := make([]string, len(commands))
	for i, c := range commands {
		out[i] = ReplaceWords(c, repl)
	}
	return out
}

// ReplaceWords replaces every maximal run of word characters (letters,
// digits, underscore) in s that is a key of repl with its value. A
// leading minus sign directly before a digit run is part of the word, so
// "-1" and "1" are distinct keys.
func ReplaceWords(s string, repl map[string]string) string {
	if len(repl) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		start := i
		if s[i] == '-' && i+1 < len(s) && isDigitByte(s[i+1]) && !precededByWord(s, i) {
			i++
		}
		j := i
		for j < len(s) {
			r, size := utf8.DecodeRuneInString(s[j:])
			if !isWordRune(r) {
				break
			}
			j += size
		}
		if j == i {
			// not a word; copy one rune
			_, size := utf8.DecodeRuneInString(s[start:])
			b.WriteString(s[start : start+size])
			i = start + size
			continue
		}
		word := s[start:j]
		if v, ok := repl[word]; ok {
			b.WriteString(v)
		} else if v, ok := repl[s[i:j]]; ok && start != i {
			b.WriteByte('-')
			b.WriteString(v)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

func precededByWord(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}
