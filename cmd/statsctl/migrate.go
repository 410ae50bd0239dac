package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ecomstudio/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "SQLite schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, logger, err := initEnv()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
					return fmt.Errorf("create database directory: %w", err)
				}
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return err
				}
				logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := initEnv()
				if err != nil {
					return err
				}
				version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
				if err != nil {
					return err
				}
				fmt.Printf("version=%d dirty=%t db=%s\n", version, dirty, cfg.SQLiteDBPath)
				return nil
			},
		},
	)
	return cmd
}
