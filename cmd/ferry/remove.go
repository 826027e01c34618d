package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <id|name> ...",
	Short: "Remove downloads",
	Long: `Remove downloads and their recorded events.

Each argument is a numeric download ID or a download name. The file
itself stays in place unless --delete-file is given; only files inside
the upload directory are ever deleted.

Examples:
  # Remove after confirming
  ferry remove releases/app-1.0.zip

  # Remove without asking and delete the file
  ferry remove --yes --delete-file 12 13`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removeYes        bool
	removeDeleteFile bool
	removeQuiet      bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
	removeCmd.Flags().BoolVar(&removeDeleteFile, "delete-file", false, "also delete the file from the upload directory")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-download output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	removed := 0
	notFound := 0
	kept := 0

	for _, idOrName := range args {
		d, getErr := a.service.Get(ctx, idOrName)
		if errors.Is(getErr, ferry.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "download", idOrName)
			}
			continue
		}
		if getErr != nil {
			return fmt.Errorf("remove %s: %w", idOrName, getErr)
		}

		if !removeYes {
			ok, confirmErr := confirmRemove(d)
			if confirmErr != nil {
				return confirmErr
			}
			if !ok {
				kept++
				continue
			}
		}

		if err := a.service.Delete(ctx, idOrName, removeDeleteFile); err != nil {
			return fmt.Errorf("remove %s: %w", idOrName, err)
		}

		removed++
		if !removeQuiet {
			slog.Info("removed", "id", d.ID, "name", d.Name)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound, "kept", kept)
	return nil
}

func confirmRemove(d ferry.Download) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove %q (%d downloads)", d.Name, d.DownloadCount),
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return true, nil
}
