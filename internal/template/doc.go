// Package template expands enemy and item templates into event edits.
//
// An enemy placement puts the behavior of a source entity into a host
// event for a target entity. The host event's template says where its
// segments are; the source entity's template says where its own segments
// are in its own event. Expansion:
//
//  1. Check that the source segments cover the mandatory combination
//     (CheckComplete). Nothing is mutated if they do not.
//  2. Copy the host event (to a new id for duplicates) and relocate its
//     ids to the target's (Relocation).
//  3. Locate the host segments and replace each one with the matching
//     source segment, relocated and filtered by encounter shape and
//     movement.
//  4. Apply the template extras: Remove, Removes, RemoveDupe, Replace,
//     Add.
//  5. For new events, copy the host event's initializers to start it.
//
// Every change goes through engine.MapPatch, so it is logged and
// journaled like a configured edit.
//
// Item templates rewrite the flags of moved items in place, either in
// the event body or in the arguments its initializers pass.
package template
