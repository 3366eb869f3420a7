// Package store provides SQLite-backed persistence for loopviz run traces.
//
// The store is append-only:
//   - Runs: one header per engine run (program, policy, outcome)
//   - Snapshots: every published snapshot, as canonical JSON
//   - Log entries: the completion log, one row per label
//
// # Critical Patterns
//
// Logical Ordering
//   - Snapshots are ordered by seq, log entries by position
//   - Queries never order by wall-clock time
//
// Idempotent Writes
//   - Every INSERT uses ON CONFLICT DO NOTHING, so re-recording a run with a
//     fixed run id leaves the first trace intact
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshot state is serialized with ir.MarshalCanonical, so stored traces
// hash identically to live ones (see ir.TraceDigest).
package store
