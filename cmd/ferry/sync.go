package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/s3store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload local downloads to S3",
	Long: `Upload every download stored in the upload directory to the
configured S3 bucket under <prefix>/<host>/<path>.

With --update the downloads are re-pointed at their s3:// locations,
so that they are served through presigned URLs from then on.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var (
	syncCategory string
	syncUpdate   bool
)

func init() {
	syncCmd.Flags().StringVarP(&syncCategory, "category", "c", "", "only downloads in category")
	syncCmd.Flags().BoolVar(&syncUpdate, "update", false, "point downloads at their uploaded objects")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.cfg
	if !cfg.S3.Enabled {
		return errors.New("s3 is not enabled (set s3.enabled and s3.bucket)")
	}

	client, err := s3store.NewClient(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("init s3: %w", err)
	}

	syncer, err := s3store.NewSyncer(client, s3store.SyncConfig{
		Bucket:      cfg.S3.Bucket,
		Prefix:      cfg.S3.Prefix,
		Host:        cfg.Server.Host(),
		Files:       a.storage,
		Concurrency: cfg.S3.Concurrency,
	}, slog.Default())
	if err != nil {
		return err
	}

	downloads, _, err := listDownloads(ctx, a.service, ferry.ListQuery{
		Category: syncCategory,
		Limit:    ferry.MaxListLimit,
	}, true)
	if err != nil {
		return fmt.Errorf("list downloads: %w", err)
	}

	uploaded, syncErr := syncer.Sync(ctx, downloads)
	slog.Info("sync finished", "uploaded", len(uploaded), "downloads", len(downloads))

	if syncUpdate {
		byID := make(map[int64]ferry.Download, len(downloads))
		for _, d := range downloads {
			byID[d.ID] = d
		}

		for _, u := range uploaded {
			d := byID[u.DownloadID]
			d.FileURL = u.Location
			if _, err := a.service.Register(ctx, d); err != nil {
				return errors.Join(syncErr, fmt.Errorf("update %q: %w", d.Name, err))
			}
			slog.Info("updated locator", "id", d.ID, "locator", u.Location)
		}
	}

	if syncErr != nil {
		return fmt.Errorf("sync: %w", syncErr)
	}
	return nil
}
