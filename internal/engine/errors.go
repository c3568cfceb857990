package engine

import (
	"errors"
	"fmt"
)

// PatchError represents a configuration or data error detected while
// patching an event.
//
// Patch errors are never recovered inside the engine: they halt
// processing of the current event and surface with enough context (map,
// event id, matcher) to diagnose. Retrying without changing the
// configuration cannot change the outcome.
type PatchError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Map and EventID locate the event being patched.
	Map     string
	EventID int64

	// Matcher describes the edit's matcher, if any.
	Matcher string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes patch errors.
type ErrorCode string

const (
	// ErrCodeMatchNotFound indicates a required matcher found nothing.
	ErrCodeMatchNotFound ErrorCode = "MATCH_NOT_FOUND"

	// ErrCodeAmbiguousEdit indicates an edit sets more than one mutation
	// kind, or applies a single-instruction kind to a region.
	ErrCodeAmbiguousEdit ErrorCode = "AMBIGUOUS_EDIT"

	// ErrCodeInvalidArgumentName indicates a bad or duplicated event
	// argument name.
	ErrCodeInvalidArgumentName ErrorCode = "INVALID_ARGUMENT_NAME"

	// ErrCodeUnresolvedParameter indicates a parameter locator that sets
	// several forms or names an argument the instruction does not have.
	ErrCodeUnresolvedParameter ErrorCode = "UNRESOLVED_PARAMETER_LOCATOR"

	// ErrCodeIncompleteTemplate indicates a template's segments do not
	// cover the mandatory combination.
	ErrCodeIncompleteTemplate ErrorCode = "INCOMPLETE_TEMPLATE"

	// ErrCodeInvalidCommand indicates command text that does not parse.
	ErrCodeInvalidCommand ErrorCode = "INVALID_COMMAND"

	// ErrCodeInvalidExpression indicates an If expression that fails to
	// evaluate.
	ErrCodeInvalidExpression ErrorCode = "INVALID_EXPRESSION"
)

// Error implements the error interface.
func (e *PatchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Map != "" {
		msg += fmt.Sprintf(" (map=%s, event=%d", e.Map, e.EventID)
		if e.Matcher != "" {
			msg += fmt.Sprintf(", match=%s", e.Matcher)
		}
		msg += ")"
	} else if e.Matcher != "" {
		msg += fmt.Sprintf(" (match=%s)", e.Matcher)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PatchError) Unwrap() error {
	return e.Err
}

// NewError creates a PatchError.
func NewError(code ErrorCode, format string, args ...any) *PatchError {
	return &PatchError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *PatchError {
	return &PatchError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithEvent fills in the map and event id of a PatchError that does not
// have them yet. Other errors are returned unchanged.
func WithEvent(err error, mapName string, eventID int64) error {
	var pe *PatchError
	if errors.As(err, &pe) && pe.Map == "" {
		pe.Map = mapName
		pe.EventID = eventID
	}
	return err
}

func hasCode(err error, code ErrorCode) bool {
	var pe *PatchError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsMatchNotFound reports whether err is a MATCH_NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsMatchNotFound(err error) bool { return hasCode(err, ErrCodeMatchNotFound) }

// IsAmbiguousEdit reports whether err is an AMBIGUOUS_EDIT error.
func IsAmbiguousEdit(err error) bool { return hasCode(err, ErrCodeAmbiguousEdit) }

// IsInvalidArgumentName reports whether err is an INVALID_ARGUMENT_NAME
// error.
func IsInvalidArgumentName(err error) bool { return hasCode(err, ErrCodeInvalidArgumentName) }

// IsUnresolvedParameter reports whether err is an
// UNRESOLVED_PARAMETER_LOCATOR error.
func IsUnresolvedParameter(err error) bool { return hasCode(err, ErrCodeUnresolvedParameter) }

// IsIncompleteTemplate reports whether err is an INCOMPLETE_TEMPLATE error.
func IsIncompleteTemplate(err error) bool { return hasCode(err, ErrCodeIncompleteTemplate) }

// IsInvalidCommand reports whether err is an INVALID_COMMAND error.
func IsInvalidCommand(err error) bool { return hasCode(err, ErrCodeInvalidCommand) }

// IsInvalidExpression reports whether err is an INVALID_EXPRESSION error.
func IsInvalidExpression(err error) bool { return hasCode(err, ErrCodeInvalidExpression) }
