package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Event    []string // Rendered event, if the assertion is about one
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Event) > 0 {
		fmt.Fprintf(&buf, "\nEvent:\n")
		for i, cmd := range e.Event {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, cmd)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventEquals:
		return assertEventEquals(result, a)
	case AssertEventContains:
		return assertEventContains(result, a)
	case AssertEventMissing:
		return assertEventMissing(result, a)
	case AssertEditCount:
		return assertEditCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func missingEvent(a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("event %d in %s", a.Event, a.Map),
		Actual:   "no such event",
	}
}

// assertEventEquals checks an event's commands exactly.
func assertEventEquals(result *Result, a Assertion) error {
	ev := result.Event(a.Map, a.Event)
	if ev == nil {
		return missingEvent(a)
	}
	want := a.Commands
	if want == nil {
		want = []string{}
	}
	if reflect.DeepEqual(ev.Commands, want) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d commands: %s", len(want), strings.Join(want, "; ")),
		Actual:   fmt.Sprintf("%d commands", len(ev.Commands)),
		Event:    ev.Commands,
	}
}

// assertEventContains checks that the commands appear in order.
// They don't need to be consecutive.
func assertEventContains(result *Result, a Assertion) error {
	ev := result.Event(a.Map, a.Event)
	if ev == nil {
		return missingEvent(a)
	}
	next := 0
	for _, cmd := range ev.Commands {
		if next < len(a.Commands) && cmd == a.Commands[next] {
			next++
		}
	}
	if next == len(a.Commands) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("commands in order: %s", strings.Join(a.Commands, "; ")),
		Actual:   fmt.Sprintf("missing %s", a.Commands[next]),
		Event:    ev.Commands,
	}
}

func assertEventMissing(result *Result, a Assertion) error {
	ev := result.Event(a.Map, a.Event)
	if ev == nil {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("no event %d in %s", a.Event, a.Map),
		Actual:   "event exists",
		Event:    ev.Commands,
	}
}

// assertEditCount counts journal edits by source prefix and kind.
func assertEditCount(result *Result, a Assertion) error {
	count := 0
	for _, rec := range result.Edits {
		if !strings.HasPrefix(rec.Source, a.Source) {
			continue
		}
		if a.Kind != "" && rec.Kind != a.Kind {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}
	what := a.Source
	if a.Kind != "" {
		what += " " + a.Kind
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d edits from %s", a.Count, what),
		Actual:   fmt.Sprintf("%d edits", count),
	}
}
