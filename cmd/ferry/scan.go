package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register files found in the upload directory",
	Long: `Scan the upload directory and register a download for every file
that has none yet. Existing downloads keep their counters and settings.
This is useful when:
  - Setting up ferry over an existing directory
  - Files were copied into the upload directory by other tools
  - Recovering after database loss`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("scanning upload directory", "path", a.uploadDir)

	created, err := a.service.Populate(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	slog.Info("scan complete", "registered", created)
	return nil
}
