// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/skylog/skylog/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations (destructive)",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			RunE:  runMigrateStatus,
		},
	)

	return cmd
}

// newMigrator loads configuration and opens a migrator against the
// configured database.
func newMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}
	return store.NewMigrator(cfg.Database.URL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // close failure does not affect the applied migrations

	cmd.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // close failure does not affect the rollback

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
	}
	cmd.Println("Rollback completed")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // read-only command

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
	}
	if dirty {
		cmd.Printf("Version %d (dirty - manual intervention required)\n", version)
		return nil
	}
	cmd.Printf("Version %d\n", version)
	return nil
}
