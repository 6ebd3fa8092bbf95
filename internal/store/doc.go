// Package store provides the path-addressed document store the doorlock
// services persist to.
//
// Documents are JSON objects addressed by slash-separated paths such as
// "doors/AA:BB:CC:DD:EE:FF" or "users/{uid}/locks/{lockId}". A collection is
// any path prefix; List returns its direct children.
//
// Three implementations share one contract:
//   - MemoryStore: mutex-guarded map, used in tests and single-process setups
//   - SQLStore on SQLite (default) and on Postgres, created from a database.DB
//
// Take is the primitive that makes invite redemption exactly-once: it reads
// and deletes a document in one atomic step, so of several concurrent callers
// only one receives the document.
package store
