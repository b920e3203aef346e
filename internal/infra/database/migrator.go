package database

import (
	"database/sql"
	"embed"

	"github.com/GuiaBolso/darwin"
	"github.com/diegoclair/sqlmigrator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema migrations. Called once at startup,
// before any repository is used.
func Migrate(db *sql.DB) error {
	migrator := sqlmigrator.New(db, darwin.PostgresDialect{})

	return migrator.Migrate(migrationFiles, "migrations")
}
