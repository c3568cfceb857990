// Package expr evaluates the boolean inclusion expressions attached to
// configuration entries, such as "bosses && !chests".
//
// Expressions use CUE expression syntax. Every identifier is resolved
// through a caller-supplied lookup, so an expression can only see the
// names the caller chooses to expose.
package expr

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/parser"
)

// Lookup resolves an identifier to its value. ok is false for unknown
// names.
type Lookup func(name string) (value bool, ok bool)

// Evaluator evaluates expressions. It is safe for concurrent use.
type Evaluator struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{ctx: cuecontext.New()}
}

var defaultEvaluator = New()

// Evaluate evaluates expression with the package-level Evaluator.
func Evaluate(expression string, lookup Lookup) (bool, error) {
	return defaultEvaluator.Evaluate(expression, lookup)
}

// Evaluate parses expression, binds each identifier it references via
// lookup, and returns the boolean result. Unknown identifiers and
// non-boolean results are errors.
func (e *Evaluator) Evaluate(expression string, lookup Lookup) (bool, error) {
	x, err := parser.ParseExpr("if", expression)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", expression, err)
	}

	names := Identifiers(x)
	scope := make(map[string]bool, len(names))
	for _, name := range names {
		v, ok := lookup(name)
		if !ok {
			return false, fmt.Errorf("evaluate %q: unknown name %q", expression, name)
		}
		scope[name] = v
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sv := e.ctx.Encode(scope)
	if err := sv.Err(); err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	v := e.ctx.BuildExpr(x, cue.Scope(sv))
	if err := v.Err(); err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	b, err := v.Bool()
	if err != nil {
		return false, fmt.Errorf("evaluate %q: result is not a boolean: %w", expression, err)
	}
	return b, nil
}

// Identifiers returns the distinct identifiers referenced by x, sorted.
func Identifiers(x ast.Expr) []string {
	seen := make(map[string]bool)
	ast.Walk(x, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			seen[id.Name] = true
		}
		return true
	}, nil)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check parses expression and reports the identifiers it references,
// without evaluating it.
func Check(expression string) ([]string, error) {
	x, err := parser.ParseExpr("if", expression)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", expression, err)
	}
	return Identifiers(x), nil
}
