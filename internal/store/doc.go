// Package store provides the terminal's SQLite-backed Local Durable Store.
//
// The store holds four independent collections:
//   - config: key/value configuration entries (JSON values, last write wins)
//   - terminals: paired identities, never deleted automatically
//   - employees: roster snapshot, always replaced as a whole
//   - attendance_logs: append-only clock events with PENDING/SYNCED status
//
// Every exported method is one atomic unit. Methods that touch more than one
// row or collection run inside a single transaction.
//
// # Ordering
//
// attendance_logs.seq is an AUTOINCREMENT key and defines creation order.
// Pending reads are always ORDER BY seq ASC so pushes never reorder entries.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: a recorded clock action survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
