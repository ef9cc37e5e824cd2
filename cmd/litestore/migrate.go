package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long: `Create the users, files and file_links tables (or the names set under
database.tables) if they do not exist, then check their schema.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		slog.Info("schema is up to date", "tables", cfg.Database.Tables)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
