// Package history records build outcomes in a SQLite database.
//
// The Store is attached to the build runner as an observer and to the router
// as its publish observer, so every job is recorded when it starts, updated
// when it finishes and marked once its output is published:
//
//	store, err := history.Open(history.Config{Driver: "sqlite", Path: ".webdev/history.db"})
//	runner.AddObserver(store)
//
// Two drivers are supported. "sqlite" is modernc.org/sqlite and needs no cgo;
// "sqlite3" is mattn/go-sqlite3. The database runs in WAL mode with a
// configurable busy timeout, and its schema version is checked on open.
//
// The janitor calls Prune to keep the newest records.
package history
