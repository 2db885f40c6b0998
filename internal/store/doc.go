// Package store persists batch runs in SQLite.
//
// A Store is a sink.Sink: the batch driver begins a run, writes one record
// per finished entity from its single merge goroutine, and closes it. The
// store keeps
//   - runs: seed, entity count, worker count and parameter source
//   - entities: attributes, outcome and record digest of each entity
//   - natural_history: the entity's pre-generated disease timeline
//   - entity_log: the event, resource and utility logs
//
// Each entity is written in one transaction. Inserts use ON CONFLICT DO
// NOTHING, so writing the same record twice is a no-op. Reads order by
// entity index and log position, never by insertion order, which makes a
// stored run readable identically however many workers produced it.
//
// Unscheduled clocks are stored as NULL.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
