// Package database provides SQLite-based storage for sitegrab.
//
// The CrawlDB stores:
//   - crawl sessions (seed, state, timing, diagnostic)
//   - the discovery records of every session, in fetch order
//   - download batches and the result of every item, including its digest
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets `sitegrab sessions` read while a crawl is saving
//
// Sessions are saved as a whole. Saving a session again replaces its
// records, matching the in-memory session that only ever grows or resets.
package database
