package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gunjansamrit/GuardianVault01/internal/config"
	"github.com/gunjansamrit/GuardianVault01/internal/database"
	"github.com/gunjansamrit/GuardianVault01/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the GuardianVault schema to the configured PostgreSQL database.

The schema is idempotent; running migrate against an up-to-date
database is a no-op.

Examples:
  DATABASE_URL=postgres://... cvault migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := store.New(pool).Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	Success("Schema applied")
	return nil
}
