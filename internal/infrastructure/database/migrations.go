package database

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

var (
	migrationsMu      sync.Mutex
	migrationSources  = map[string]fs.FS{}
	gooseDialects     = map[string]string{DriverSQLite: "sqlite3", DriverPostgres: "pgx"}
	gooseUpContext    = goose.UpContext
	gooseDownContext  = goose.DownContext
	gooseVersionQuery = goose.GetDBVersionContext
)

// RegisterMigrations sets the goose migration files for a driver.
// The migrations package calls this from init with its embedded files.
func RegisterMigrations(driver string, fsys fs.FS) {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()
	migrationSources[driver] = fsys
}

// Migrate applies all pending migrations registered for the database's driver.
// It is a no-op when nothing has been registered.
//
// goose keeps its base filesystem and dialect in package state, so calls are
// serialised across all DB values.
func (db *DB) Migrate(ctx context.Context) error {
	return db.withGoose(func() error {
		if err := gooseUpContext(ctx, db.DB, "."); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the most recent migration.
// This is primarily for development and testing.
func (db *DB) MigrateDown(ctx context.Context) error {
	return db.withGoose(func() error {
		if err := gooseDownContext(ctx, db.DB, "."); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the version of the latest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	var version int64
	err := db.withGoose(func() error {
		v, err := gooseVersionQuery(ctx, db.DB)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func (db *DB) withGoose(fn func() error) error {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()

	fsys, ok := migrationSources[db.driver]
	if !ok {
		return nil
	}

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialects[db.driver]); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	return fn()
}
