package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/config"
	"github.com/ferrydl/ferry/database"
	"github.com/ferrydl/ferry/filesystem"
)

// app bundles what most commands need: the store, the upload directory and
// the download service on top of them.
type app struct {
	cfg       *config.Config
	db        database.Database
	root      *os.Root
	uploadDir string
	storage   *filesystem.Store
	service   *ferry.Service
}

// openApp connects the database and opens the upload directory. Migrations
// run only when migrate is set; the schema is validated either way.
func openApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	uploadDir, err := filepath.Abs(cfg.Content.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(uploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, migrate)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	root, err := os.OpenRoot(uploadDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open upload dir: %w", err)
	}

	storage := filesystem.NewFileStorage(root)

	return &app{
		cfg:       cfg,
		db:        db,
		root:      root,
		uploadDir: uploadDir,
		storage:   storage,
		service:   ferry.NewService(db.GetRepo(), storage, ferry.ServiceConfig{}),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.root.Close(), a.db.Close())
}
