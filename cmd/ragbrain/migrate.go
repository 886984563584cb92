package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres schema",
	Long: `Create the pgvector extension, tables and indexes used by the Postgres
backends. Statements are idempotent, so running migrate twice is safe.

Examples:
  RAGBRAIN_STORAGE_CONVERSATIONS=postgres \
  RAGBRAIN_STORAGE_POSTGRES_DSN=postgres://ragbrain@localhost/ragbrain?sslmode=disable \
  ragbrain migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(ctx))

		if !a.config.UsesPostgres() {
			return errors.New("no storage backend is set to " + config.BackendPostgres)
		}
		if err := a.openStores(ctx); err != nil {
			return err
		}
		if err := a.stores.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}
