package s3store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/ferrydl/ferry"
)

// ObjectAPI is the part of *s3.Client the syncer uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FileSource reads the upload directory. *filesystem.Store satisfies it.
type FileSource interface {
	// Dir is the absolute upload directory.
	Dir() string
	Get(ctx context.Context, path string) (io.ReadSeekCloser, error)
}

// SyncConfig configures a Syncer.
type SyncConfig struct {
	Bucket      string
	Prefix      string
	Host        string // Site host, used as a key segment
	Files       FileSource
	Concurrency int
}

// Uploaded describes one object written by Sync.
type Uploaded struct {
	DownloadID int64
	Key        string
	Location   string
	Size       int64
}

// Syncer uploads local downloads to a bucket.
type Syncer struct {
	client ObjectAPI
	cfg    SyncConfig
	logger *slog.Logger
}

func NewSyncer(client ObjectAPI, cfg SyncConfig, logger *slog.Logger) (*Syncer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new syncer: %w: bucket is required", ferry.ErrInvalidInput)
	}
	if cfg.Files == nil || !filepath.IsAbs(cfg.Files.Dir()) {
		return nil, fmt.Errorf("new syncer: %w: upload dir must be absolute", ferry.ErrInvalidInput)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{client: client, cfg: cfg, logger: logger}, nil
}

// Key returns the object key for a storage-relative path.
func (s *Syncer) Key(rel string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(s.cfg.Prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if s.cfg.Host != "" {
		parts = append(parts, s.cfg.Host)
	}
	parts = append(parts, rel)
	return path.Join(parts...)
}

// Sync uploads every download whose locator is a file under the upload
// directory. Remote and foreign locators are skipped. The first upload
// error cancels the rest; objects already written are returned with it.
func (s *Syncer) Sync(ctx context.Context, downloads []ferry.Download) ([]Uploaded, error) {
	var (
		mu       sync.Mutex
		uploaded []Uploaded
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, d := range downloads {
		rel, ok := s.relativePath(d.FileURL)
		if !ok {
			s.logger.DebugContext(ctx, "skipping download outside upload dir", "id", d.ID, "name", d.Name)
			continue
		}

		g.Go(func() error {
			u, err := s.upload(gctx, d, rel)
			if err != nil {
				return fmt.Errorf("sync %q: %w", d.Name, err)
			}

			mu.Lock()
			uploaded = append(uploaded, u)
			mu.Unlock()

			s.logger.InfoContext(gctx, "uploaded download", "id", d.ID, "key", u.Key, "size", u.Size)
			return nil
		})
	}

	err := g.Wait()
	return uploaded, err
}

func (s *Syncer) upload(ctx context.Context, d ferry.Download, rel string) (Uploaded, error) {
	f, err := s.cfg.Files.Get(ctx, rel)
	if err != nil {
		return Uploaded{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Uploaded{}, fmt.Errorf("size: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Uploaded{}, fmt.Errorf("rewind: %w", err)
	}

	contentType, err := detectContentType(f, rel)
	if err != nil {
		return Uploaded{}, err
	}

	key := s.Key(rel)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.cfg.Bucket),
		Key:                aws.String(key),
		Body:               f,
		ContentLength:      aws.Int64(size),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", d.FileName())),
	})
	if err != nil {
		return Uploaded{}, fmt.Errorf("put object: %w", err)
	}

	return Uploaded{
		DownloadID: d.ID,
		Key:        key,
		Location:   Location(s.cfg.Bucket, key),
		Size:       size,
	}, nil
}

func (s *Syncer) relativePath(locator string) (string, bool) {
	if locator == "" || !filepath.IsAbs(locator) {
		return "", false
	}

	rel, err := filepath.Rel(s.cfg.Files.Dir(), locator)
	if err != nil {
		return "", false
	}

	rel = filepath.ToSlash(rel)
	if !ferry.IsValidPath(rel) {
		return "", false
	}
	return rel, true
}

// detectContentType sniffs f and rewinds it. The extension wins when
// sniffing only finds generic binary data.
func detectContentType(f io.ReadSeeker, name string) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}

	if mt.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
			return byExt, nil
		}
	}
	return mt.String(), nil
}
