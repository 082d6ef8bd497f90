// Package store records scenario runs in a SQLite file.
//
// Tables:
//   - runs: one row per run, with the scenario name, the environment, the
//     number of completed ticks, the fingerprint and the outcome
//   - snapshots: one row per entity per snapshot, status as canonical JSON
//
// # Ordering
//
// Runs are ordered by seq, a counter assigned on insert, never by wall
// time. Snapshot rows are read ORDER BY tick ASC, entity_id COLLATE BINARY
// ASC so two reads of the same run are byte-identical.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
