// Package migrations embeds the goose migration files for each supported
// database driver so the binary can bring a fresh database up to date without
// the SQL files present on disk.
package migrations

import (
	"embed"
	"io/fs"

	"github.com/nerrad567/doorlock-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

func init() {
	database.RegisterMigrations(database.DriverSQLite, mustSub(sqliteFS, "sqlite"))
	database.RegisterMigrations(database.DriverPostgres, mustSub(postgresFS, "postgres"))
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
