// Package database provides SQL connectivity for the doorlock document store.
//
// This package manages:
//   - SQLite connections (mattn/go-sqlite3) with WAL mode and a single writer
//   - Postgres connections through the pgx stdlib driver
//   - Schema migrations with goose, using files registered per driver
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The SQLite file is restricted to 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files live in the top-level migrations package and are plain goose
// SQL files (-- +goose Up / -- +goose Down).
package database
