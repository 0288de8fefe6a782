// Package sim provides in-memory stand-ins for the engine's external
// collaborators: a contract-code registry, a successor factory that derives
// addresses the way CREATE does, a mutable key directory, and allowance-based
// token ledgers.
//
// The simulation is deterministic. Every type is safe for concurrent use.
// Failure injection hooks (Factory.FailNext, Ledger.FailReads) exist so tests
// can exercise the engine's error paths.
package sim
