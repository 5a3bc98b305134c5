// Package store provides SQLite-backed durable storage for tick traces.
//
// The store implements an append-only trace log with:
//   - Trees: Canonical tree definitions, pinned by content hash
//   - Runs: One record per run, finalized with a terminal status
//   - Tick Events: The per-run event stream (run_start, enter, leaf, exit,
//     tick, run_end)
//
// # Critical Patterns
//
// Idempotent Writes
//   - Every insert uses ON CONFLICT DO NOTHING
//   - Trees are keyed by content hash, events by (run_token, seq)
//   - Re-running a recorded run cannot duplicate rows
//
// Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Enables deterministic replay regardless of wall time
//
// Deterministic Query Results
//   - Trace reads order by seq ASC; token lists break ties COLLATE BINARY
//   - Ensures identical results across replays
//
// Pinned Definitions
//   - runs.tree_hash references the exact canonical definition executed
//   - Replay rebuilds from the pinned row, not from current CUE sources
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Tree hashes are computed via internal/ir using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package store
