// Package store provides SQLite-backed run history for the harness.
//
// Each finished run is stored as one row in runs, holding the summary
// counters and the complete TAP report, plus one row per top-level test
// in tests. Runs are keyed by their run ID (UUIDv7 by default, so IDs sort
// by start time).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s on lock contention
//   - foreign_keys=ON: tests rows cascade with their run
//
// Schema changes are applied incrementally and tracked with PRAGMA
// user_version. Open refuses a database whose version is newer than the
// migrations it knows.
package store
