// Package store provides SQLite-backed durable state for the migration engine.
//
// The store persists:
//   - Engine state: administrator, stage, migration cursor and pass counter
//   - Source entities: the append-only registry in canonical migration order
//   - Successor entities: index-aligned with the registry
//   - Phase transitions: one row per stage advance
//   - Migration errors: one row per failed pull transfer
//
// # Ordering
//
// Registry order is the idx column. Audit records carry a logical seq from
// the engine clock; all audit reads ORDER BY seq ASC. Wall-clock time is
// never used for ordering.
//
// # Atomicity
//
// Every mutating method commits in a single transaction. AppendSources
// admits all addresses or none. AdvanceStage writes the new stage and its
// transition row together.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
