// Package engine applies declarative edits to event scripts.
//
// The pieces, leaves first:
//
//   - PackArguments assigns byte offsets to a new event's named arguments
//     and SubstituteArguments rewrites command text to placeholder tokens.
//   - Matcher is a closed sum type (AnyMatcher, InitMatcher,
//     LiteralMatcher, BothMatcher) evaluated by Match over an Instr view.
//   - Applicator performs one EventEdit: it searches for the first match
//     (or every match, for Remove: All), applies exactly one mutation, and
//     reports MATCH_NOT_FOUND when the search is exhausted.
//   - Engine drives a whole map: new events, existing-event edits,
//     initializers, then registered Passes such as the template
//     expanders.
//
// PARAMETER BOOKKEEPING:
//
// An event's parameter table addresses instructions by position. Every
// mutation is bracketed by ir.Preprocess and ParamSnapshot.Postprocess so
// the table follows the instructions it belongs to. The bracket is
// released on every exit path, including errors.
//
// ORDERING:
//
// Edits within an event apply strictly in configuration order; a later
// matcher may depend on what an earlier edit inserted or removed. Maps
// are independent and PatchAll runs them in parallel. Given the same
// inputs, output is byte-identical between runs.
//
// ERRORS:
//
// All failures are PatchErrors carrying a code and the map, event, and
// matcher involved. Nothing is retried. Existing events are edited on a
// copy, and a failed run returns no scripts, so a half-edited event is
// never handed back.
package engine
