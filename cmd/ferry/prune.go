package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old download events",
	Long: `Delete download events older than the retention period.

Download counters are not affected. The retention defaults to
events.retention from the configuration.

Run this periodically to keep the events table small.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

var pruneOlderThan time.Duration

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "override the configured retention (e.g. 720h)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	retention := a.cfg.Events.Retention
	if pruneOlderThan > 0 {
		retention = pruneOlderThan
	}

	slog.Info("pruning events", "retention", retention)

	n, err := a.service.PruneEvents(ctx, retention)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	slog.Info("prune complete", "events_deleted", n)
	return nil
}
