package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find content objects that no file references",
	Long: `Scan the content store and report objects that no file node references.
Such objects are left behind by abandoned uploads and failed cleanup.

By default the orphans are only listed. Pass --delete to remove them.

Examples:
  # Report orphans of every user
  litestore reconcile

  # Remove orphans of user 42
  litestore reconcile --prefix users/42/ --delete`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var (
	reconcilePrefix   string
	reconcilePageSize int
	reconcileDelete   bool
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcilePrefix, "prefix", "users/", "key prefix to scan")
	reconcileCmd.Flags().IntVar(&reconcilePageSize, "page-size", 1000, "keys per listing call")
	reconcileCmd.Flags().BoolVar(&reconcileDelete, "delete", false, "delete the orphans found")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("scanning content store", "prefix", reconcilePrefix)

	orphans, err := a.files.Orphans(ctx, reconcilePrefix, reconcilePageSize)
	if err != nil {
		return err
	}

	for _, key := range orphans {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
	}

	if !reconcileDelete || len(orphans) == 0 {
		slog.Info("reconcile complete", "orphans", len(orphans))
		return nil
	}

	if err := a.files.PurgeOrphans(ctx, orphans); err != nil {
		return err
	}

	slog.Info("reconcile complete", "orphans", len(orphans), "deleted", len(orphans))
	return nil
}
