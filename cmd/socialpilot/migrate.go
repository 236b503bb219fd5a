package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/db"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded schema migrations that have not run yet against
DATABASE_PATH. With --status the pending files are listed and nothing is
applied.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "List pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.DatabasePath, err)
	}
	defer store.Close()

	pending, err := store.PendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list pending migrations: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("Schema is up to date.")
		return nil
	}

	fmt.Printf("Pending migrations (%d):\n", len(pending))
	for _, file := range pending {
		fmt.Printf("  %s\n", file)
	}
	if migrateStatus {
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	slog.Info("schema migrated", "path", cfg.DatabasePath, "applied", len(pending))
	fmt.Printf("Applied %d migration(s).\n", len(pending))
	return nil
}
