package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"funcreg/internal/config"
	"funcreg/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect registry schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect || dryRun {
				plan, err := inspectMigrations(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				return writeResult(opts, plan, func() error { return writeMigrationPlan(plan) })
			}

			// Opening the store applies pending migrations, as srv does.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			current, err := st.SchemaVersion(context.Background())
			if err != nil {
				return err
			}
			result := map[string]int{"current_version": current}
			return writeResult(opts, result, func() error {
				return writePlain("schema at version %d\n", current)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func inspectMigrations(path string) (*store.MigrationStatus, error) {
	db, err := openRawDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.MigrationPlan(db)
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	_ = writePlain("current version: %d\n", plan.CurrentVersion)
	_ = writePlain("available version: %d\n", plan.AvailableVersion)
	if len(plan.Pending) == 0 {
		return writePlain("no pending migrations\n")
	}
	_ = writePlain("pending migrations: %d\n", len(plan.Pending))
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
