// Package harness runs scripted migration scenarios against the engine and
// the simulated chain.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: partial_failure
//	description: "A missing authorization does not stop the pass"
//	ledgers: [DAI, MKR]
//	entities: [alpha, beta]
//	setup:
//	  - action: fund
//	    ledger: DAI
//	    entity: alpha
//	    amount: "100"
//	flow:
//	  - action: register
//	    entities: [alpha, beta]
//	  - action: deploy
//	    gas: 25
//	    until: done
//	  - action: end
//	    expect_error: FIRST_PASS_INCOMPLETE
//	assertions:
//	  - type: balance
//	    ledger: DAI
//	    holder: successor:alpha
//	    amount: "100"
//
// Names resolve to stable addresses. "admin" is the administrator, and
// "migrator" is the spender that entities approve. Names listed under
// entities hold contract code. "zero" is the zero address.
//
// # Assertion Types
//
//   - flags: phase flags by JSON name
//   - balance: a ledger balance of an entity or "successor:<entity>"
//   - error_count: migration errors, optionally for one pass
//   - successors, cursor, passes: engine counters
//   - trace_count, trace_order: calls in the flow trace
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite database, call IDs derived from the
// scenario name, and numbered steps, so traces are byte-identical across
// runs and can be compared with golden files.
package harness
