package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := common.WithInterrupt(cmd.Context())
		defer cancel()

		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		version, err := st.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Database %s is at schema version %d", cfg.Database.DSN, version)))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
