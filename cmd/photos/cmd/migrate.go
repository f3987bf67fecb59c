package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetlink/vetlink/internal/config"
	"github.com/vetlink/vetlink/internal/db"
	"github.com/vetlink/vetlink/internal/logger"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(migrateStep("up", "Apply all pending migrations", db.RunMigrations))
	cmd.AddCommand(migrateStep("down", "Roll back the most recent migration", db.MigrateDown))
	return cmd
}

func migrateStep(use, short string, run func(*sql.DB, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flush := logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
			defer flush()

			conn, err := db.Init(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer func() { _ = db.Close(conn) }()

			if err := run(conn.DB, cfg.DBDriver); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "==> migrate %s done\n", use)
			return nil
		},
	}
}
