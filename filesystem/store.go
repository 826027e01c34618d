// Package filesystem provides the local storage used by ferry: the upload
// directory that imported downloads are written to, and a sandbox that
// confines the files the delivery layer may open.
//
// Writes are atomic (temp file then rename) and produce SHA256-based etags.
// Content types come from the file extension, or from the first bytes of
// the file when the extension is unknown.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ferrydl/ferry"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const tmpPrefix = ".t"

// Store provides file system storage operations on the upload directory.
type Store struct {
	root *os.Root
	dir  string
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	dir := root.Name()
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Store{root: root, dir: dir}
}

// Dir returns the absolute path of the storage root.
func (s *Store) Dir() string {
	return s.dir
}

// Get opens a file for reading. Returns ferry.ErrNotFound if the file does not exist.
func (s *Store) Get(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferry.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to the given path using a temp file and rename.
// It creates intermediate directories as needed and returns a SaveResult containing
// the number of bytes written and SHA256-based etag. The operation respects context cancellation.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (ferry.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ferry.SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return ferry.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	fileSizeBytes, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return ferry.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return ferry.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if destDir := filepath.Dir(path); destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return ferry.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return ferry.SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true

	return ferry.SaveResult{BytesWritten: fileSizeBytes, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a file. Returns ferry.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ferry.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// List recursively walks the root directory and returns every file with its
// slash-separated path, size, SHA256-based etag and content type. Temp files
// of in-flight writes are skipped.
func (s *Store) List(ctx context.Context) ([]ferry.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []ferry.FileEntry{}

	if err := s.walkDir(ctx, ".", &entries); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, dir string, entries *[]ferry.FileEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entryPath := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, entryPath, entries); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() || isTmpFile(entry.Name()) {
			continue
		}

		fe, err := s.describe(entryPath)
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, fe)
	}

	return nil
}

// describe hashes a file and detects its content type in a single pass.
func (s *Store) describe(name string) (ferry.FileEntry, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return ferry.FileEntry{}, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", name, "err", closeErr)
		}
	}()

	h := sha256.New()

	sniffed, err := mimetype.DetectReader(io.TeeReader(f, h))
	if err != nil {
		return ferry.FileEntry{}, err
	}

	if _, err := io.Copy(h, f); err != nil {
		return ferry.FileEntry{}, err
	}

	info, err := f.Stat()
	if err != nil {
		return ferry.FileEntry{}, err
	}

	return ferry.FileEntry{
		Path:        name,
		Size:        info.Size(),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: detectContentType(name, sniffed.String()),
	}, nil
}

func detectContentType(name, sniffed string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(name)); contentType != "" {
		return contentType
	}

	if sniffed != "" {
		return sniffed
	}

	return "application/octet-stream"
}

func tmpFileName() string {
	return fmt.Sprintf("%s%s", tmpPrefix, uuid.New().String())
}

func isTmpFile(name string) bool {
	rest, ok := strings.CutPrefix(name, tmpPrefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}
