// Package store persists orchestration history.
//
// # Records
//
//   - Allocation: one entry in the append-only allocation audit trail
//   - PerformanceRecord: snapshot of one (agent, capability) pair's
//     rolling stats
//
// # Implementations
//
// SQLiteStore backs the Store interface with modernc.org/sqlite in WAL
// mode; the schema is created on open. MemoryStore keeps everything in
// process for tests and store-less deployments:
//
//	st, err := store.NewSQLiteStore("/var/lib/meshwork/meshwork.db")
//	st := store.NewMemoryStore()
//
// ListAllocations returns the most recent entries most-recent-last.
// GetPerformance returns ErrNotFound for a pair with no history. All
// methods accept context.Context.
package store
