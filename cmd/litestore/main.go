package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/config"
)

var version = "dev"

var configFiles []string

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "litestore",
	Short:   "Personal cloud storage server",
	Long: `litestore keeps a virtual file tree per user in a relational database
and stores file contents in S3 or on the local filesystem. Clients upload
and download directly through presigned URLs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: LITESTORE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: litestore.db, env: LITESTORE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-backend", "", "content backend: s3, filesystem (default: filesystem, env: LITESTORE_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-path", "", "filesystem backend directory (default: ./data, env: LITESTORE_STORAGE_FILESYSTEM_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: LITESTORE_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
