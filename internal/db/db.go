package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// driverNames maps the configured DB_DRIVER to the database/sql driver name.
var driverNames = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "pgx",
	"pgx":      "pgx",
}

// DriverName returns the database/sql driver registered for a configured
// DB_DRIVER value.
func DriverName(driver string) (string, error) {
	name, ok := driverNames[driver]
	if !ok {
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	return name, nil
}

func Init(driver, connection string) (*sqlx.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}

	// SQLite: create data directory if needed
	if name == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(connection), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		// Foreign keys are off by default in SQLite.
		connection = withPragma(connection, "foreign_keys(1)")
	}

	db, err := sqlx.Connect(name, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if name == "sqlite" {
		// One writer avoids SQLITE_BUSY on concurrent pointer updates.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "driver", name)
	return db, nil
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}

func withPragma(dsn, pragma string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_pragma=" + pragma
	}
	return dsn + "?_pragma=" + pragma
}
