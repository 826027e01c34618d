package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "ferry",
	Short:   "File delivery server with access rules and download tracking",
	Long: `Ferry serves downloads through a configurable delivery pipeline:
password and rule gates, range-aware streaming, X-Sendfile style
offloading or redirects, and per-download counters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

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
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: FERRY_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: ferry.db, env: FERRY_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("upload-dir", "", "upload directory (default: ./downloads, env: FERRY_CONTENT_UPLOAD_DIR)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: FERRY_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
