// Package database provides the persistent Link Store for FerrumWeb.
//
// Two backends implement the Store interface:
//   - LinkDB: a single SQLite file (links.db) in the data directory
//   - PostgresStore: a PostgreSQL database selected with --database-url
//
// Both keep a single relation link(id, url, parent_id, depth, discovered_at).
// The root link stores NULL in parent_id so that parent_id can reference
// link(id); reads map NULL back to model.RootParentID.
//
// Design decision: We use SQLite (via modernc.org/sqlite) as the default
// because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. The crawl writes from a single goroutine, so one connection is enough
//
// A crawl run opens the store with Reset so every run starts from an empty
// table; the tree command opens it read-only.
package database
