// Package ir provides the instruction model for event scripts.
//
// This package contains the data types every other internal package
// operates on: instructions, parameter entries, events, and scripts. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Instruction identity is pointer identity. Parameter entries are
//     re-derived from instruction positions after every mutation (see
//     ParamSnapshot), so edits never keep stale indices.
//   - Clone is total: no slice or byte buffer is shared between a value
//     and its clone.
//   - Serialization is deterministic; the same event always produces the
//     same bytes and the same EventHash.
package ir
