package db

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

var gooseSetup = sync.OnceValue(func() error {
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect("postgres")
})

// withGoose runs fn against the embedded case schema. A nil database is a
// no-op so in-memory deployments can call it unconditionally.
func withGoose(database *sql.DB, fn func() error) error {
	if database == nil {
		return nil
	}
	if err := gooseSetup(); err != nil {
		return err
	}
	return fn()
}

// RunMigrations applies every pending migration.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	return withGoose(database, func() error {
		return goose.UpContext(ctx, database, migrationsDir)
	})
}

// MigrationStatus logs the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, database *sql.DB) error {
	return withGoose(database, func() error {
		return goose.StatusContext(ctx, database, migrationsDir)
	})
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(ctx context.Context, database *sql.DB) error {
	return withGoose(database, func() error {
		return goose.DownContext(ctx, database, migrationsDir)
	})
}
