package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yunmun/api/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.ApplyMigrations(cmd.Context(), db, dialect); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", dialect)
			return nil
		},
	})

	var confirm bool
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("migrate down drops all data; pass --yes to continue")
			}
			db, dialect, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.RollbackMigrations(cmd.Context(), db, dialect); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations rolled back (%s)\n", dialect)
			return nil
		},
	}
	downCmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the rollback")
	migrateCmd.AddCommand(downCmd)

	return migrateCmd
}
