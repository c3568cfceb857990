// Package store provides the SQLite patch journal.
//
// A journal holds one row per patch run and one row per applied edit:
//   - Runs: id, enabled options, patched maps, final status
//   - Edits: the change one configuration entry made to one event, with
//     the event's hash before and after
//
// # Ordering
//
// Edits are ordered by their run-local seq (the engine's logical clock),
// never by timestamps, so two journals of the same run compare equal.
// Runs are listed in the order they began.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
