package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// dialects maps database/sql driver names to the Goose dialect and the
// migrations subdirectory written for it.
var dialects = map[string]struct {
	goose string
	dir   string
}{
	"sqlite": {goose: "sqlite3", dir: "migrations/sqlite"},
	"pgx":    {goose: "postgres", dir: "migrations/postgres"},
}

// setupGoose configures Goose with the correct dialect and filesystem
func setupGoose(driver string) error {
	name, err := DriverName(driver)
	if err != nil {
		return err
	}
	d := dialects[name]

	if err := goose.SetDialect(d.goose); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	migrationsDir, err := fs.Sub(migrationsFS, d.dir)
	if err != nil {
		return fmt.Errorf("failed to get migrations directory: %w", err)
	}

	goose.SetBaseFS(migrationsDir)
	goose.SetLogger(goose.NopLogger())
	return nil
}

func RunMigrations(db *sql.DB, driver string) error {
	if err := setupGoose(driver); err != nil {
		return err
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("migrations completed successfully")
	return nil
}

func MigrateDown(db *sql.DB, driver string) error {
	if err := setupGoose(driver); err != nil {
		return err
	}

	if err := goose.Down(db, "."); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	slog.Info("rolled back one migration")
	return nil
}
