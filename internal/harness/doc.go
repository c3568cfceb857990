// Package harness runs end-to-end patch scenarios.
//
// A scenario bundles everything one patch run needs: the configuration
// document, an optional assignment, option names, and the input scripts
// written as command text. The harness patches the scripts with the
// real engine and both template passes, journals the run to an
// in-memory SQLite store, and checks the scenario's assertions against
// the rendered output.
//
// # Scenario Format
//
//	name: boss_duplicates
//	description: "Two copies of a boss get their own flags"
//	options: "bosses"
//	config:
//	  EnemyEvents: [...]
//	assignment:
//	  Enemies: [...]
//	scripts:
//	  - map: m10_00
//	    events:
//	      - id: 11005000
//	        commands:
//	          - HandleBossDefeat(1000)
//	expect_error: INCOMPLETE_TEMPLATE
//	assertions:
//	  - type: event_equals
//	    map: m10_00
//	    event: 11005900
//	    commands: [...]
//
// # Assertion Types
//
//   - event_equals: the event's commands are exactly the given list
//   - event_contains: the given commands appear in the event, in order
//   - event_missing: the event does not exist
//   - edit_count: the journal holds Count edits whose source starts with
//     Source (and whose kind is Kind, if set)
//
// # Deterministic Testing
//
// Run ids come from a sequential generator and edits are ordered by the
// engine's logical clock, so rendering a scenario twice gives identical
// output. RunWithGolden compares the rendered maps against
// testdata/golden/{name}.golden.
package harness
