// Package engine implements the relay-contract migration engine.
//
// The engine moves balances held by a registered population of source
// entities (legacy relay contracts) to one newly provisioned successor
// entity (smart wallet) per source. It advances through ordered stages that
// can never be skipped, repeated or reversed:
//
//	registering -> deploying -> awaiting-approvals -> migrating
//	    -> first-pass-done -> closed
//
// ARCHITECTURE:
//
// Serialized calls:
// Every exported method holds the engine lock for its whole duration. A
// call either runs to completion, stops voluntarily at a saved position, or
// fails before changing anything.
//
// Budget-bounded resumable loops:
// DeploySuccessors and RunMigrationPass take a Budget. Before each step
// they compare the remaining budget with the cost of the heaviest possible
// step (see CostSchedule) and return early, progress committed, when it is
// too low. The next call resumes where the last one stopped:
//   - deployment resumes at len(successors)
//   - migration resumes at the persisted cursor
//
// Partial-failure isolation:
// A pull transfer that fails is captured as an outcome, recorded as a
// MigrationError and skipped. It never aborts the pass. Another pass, once
// the cause is fixed externally, picks the balance up again because every
// pass re-reads current balances.
//
// ERROR CLASSES:
//   - *Error: call-aborting caller mistakes (phase gates, bad input,
//     unauthorized caller). No state changes.
//   - wrapped I/O errors from the store or collaborators. Progress made
//     before the failure stays committed.
//   - domain.MigrationError records: per-entity soft failures, never
//     returned as errors.
//
// All records are stamped with a logical seq from Clock, never wall time.
package engine
