package ferry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"
)

// Service manages the download catalogue: importing files into the upload
// directory, registering external locators and keeping the store in sync
// with the files on disk.
type Service struct {
	repo           DownloadRepo
	storage        FileStorage
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for cleanup operations (default: 30s)
}

func NewService(repo DownloadRepo, storage FileStorage, cfg ServiceConfig) *Service {
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &Service{
		repo:           repo,
		storage:        storage,
		cleanupTimeout: cleanupTimeout,
	}
}

// Get looks a download up by numeric ID, or by name when idOrName is not a
// number. A numeric string that matches no ID is retried as a name.
func (s *Service) Get(ctx context.Context, idOrName string) (Download, error) {
	if err := ctx.Err(); err != nil {
		return Download{}, fmt.Errorf("get download: %w", err)
	}

	if idOrName == "" {
		return Download{}, fmt.Errorf("get download: %w", ErrNotFound)
	}

	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil && id > 0 {
		d, err := s.repo.Get(ctx, id)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Download{}, fmt.Errorf("get download %d: %w", id, err)
		}
	}

	d, err := s.repo.GetByName(ctx, idOrName)
	if err != nil {
		return Download{}, fmt.Errorf("get download %q: %w", idOrName, err)
	}

	return d, nil
}

// Create writes content into the upload directory and registers a download
// pointing at it. If registering fails, the stored file is removed again.
//
// Error types returned:
//   - ErrInvalidInput: invalid path or download fields
//   - context.Canceled or context.DeadlineExceeded: context was cancelled
//   - Wrapped storage and repository errors
func (s *Service) Create(ctx context.Context, nd NewDownload, content io.Reader) (Download, error) {
	if err := ctx.Err(); err != nil {
		return Download{}, fmt.Errorf("create download: %w", err)
	}

	if !IsValidPath(nd.Path) {
		return Download{}, fmt.Errorf("create download %q: %w", nd.Path, ErrInvalidInput)
	}

	name := nd.Name
	if name == "" {
		name = nd.Path
	}

	d := Download{
		Name:      name,
		FileURL:   filepath.Join(s.storage.Dir(), filepath.FromSlash(nd.Path)),
		Category:  nd.Category,
		Password:  nd.Password,
		Rules:     nd.Rules,
		MenuOrder: nd.MenuOrder,
	}

	if err := d.Validate(); err != nil {
		return Download{}, fmt.Errorf("create download %q: %w", nd.Path, err)
	}

	if _, err := s.storage.Write(ctx, nd.Path, content); err != nil {
		return Download{}, fmt.Errorf("create download %q: write failed: %w", nd.Path, err)
	}

	stored, _, upsertErr := s.repo.Upsert(ctx, d)
	if upsertErr != nil {
		// Use background context for cleanup since original context may be cancelled
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, nd.Path); delErr != nil {
			return Download{}, fmt.Errorf("create download %q: upsert failed (%w) and cleanup failed: %w", nd.Path, upsertErr, delErr)
		}
		return Download{}, fmt.Errorf("create download %q: upsert failed: %w", nd.Path, upsertErr)
	}

	return stored, nil
}

// Register stores a download whose bytes already live somewhere, such as a
// remote URL or a file outside the upload directory.
func (s *Service) Register(ctx context.Context, d Download) (Download, error) {
	if err := ctx.Err(); err != nil {
		return Download{}, fmt.Errorf("register download: %w", err)
	}

	if err := d.Validate(); err != nil {
		return Download{}, fmt.Errorf("register download: %w", err)
	}

	stored, _, err := s.repo.Upsert(ctx, d)
	if err != nil {
		return Download{}, fmt.Errorf("register download %q: %w", d.Name, err)
	}

	return stored, nil
}

// Delete removes a download and its events. When removeFile is set and the
// download lives inside the upload directory, the file is deleted as well;
// a file that is already gone is not an error.
func (s *Service) Delete(ctx context.Context, idOrName string, removeFile bool) error {
	d, err := s.Get(ctx, idOrName)
	if err != nil {
		return fmt.Errorf("delete download: %w", err)
	}

	if err := s.repo.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("delete download %d: %w", d.ID, err)
	}

	if !removeFile {
		return nil
	}

	rel, ok := s.storagePath(d.FileURL)
	if !ok {
		return nil
	}

	if err := s.storage.Delete(ctx, rel); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete download %d: remove file: %w", d.ID, err)
	}

	return nil
}

func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list downloads: %w", err)
	}

	result, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list downloads: %w", err)
	}

	return result, nil
}

// Events returns the most recent events of a download.
func (s *Service) Events(ctx context.Context, id int64, limit int) ([]Event, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events, err := s.repo.ListEvents(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list events %d: %w", id, err)
	}

	return events, nil
}

// Populate registers every file in the upload directory that has no
// download yet. The download name is the storage-relative path. Existing
// downloads are left untouched so that counters and settings survive.
//
// It returns the number of downloads created. The operation is not atomic:
// on error, files processed before the failure stay registered.
func (s *Service) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	files, listErr := s.storage.List(ctx)
	if listErr != nil {
		return 0, fmt.Errorf("populate: %w", listErr)
	}

	created := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return created, fmt.Errorf("populate: %w", err)
		}

		_, getErr := s.repo.GetByName(ctx, file.Path)
		if getErr == nil {
			continue
		}
		if !errors.Is(getErr, ErrNotFound) {
			return created, fmt.Errorf("populate %q: %w", file.Path, getErr)
		}

		d := Download{
			Name:    file.Path,
			FileURL: filepath.Join(s.storage.Dir(), filepath.FromSlash(file.Path)),
		}

		if _, _, err := s.repo.Upsert(ctx, d); err != nil {
			return created, fmt.Errorf("populate %q: %w", file.Path, err)
		}
		created++
	}

	return created, nil
}

// PruneEvents deletes events older than the given retention.
func (s *Service) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune events: %w: retention must be positive", ErrInvalidInput)
	}

	n, err := s.repo.PruneEvents(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	return n, nil
}

// storagePath returns the storage-relative path of a locator inside the
// upload directory.
func (s *Service) storagePath(locator string) (string, bool) {
	dir := s.storage.Dir()
	if dir == "" || !filepath.IsAbs(locator) {
		return "", false
	}

	rel, err := filepath.Rel(dir, locator)
	if err != nil {
		return "", false
	}

	rel = filepath.ToSlash(rel)
	if !IsValidPath(rel) {
		return "", false
	}

	return rel, true
}
