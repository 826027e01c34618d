package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/ferrydl/ferry"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultChunkSize is the number of bytes copied between flushes.
const DefaultChunkSize = 1 << 20

// FileOpener opens local files. filesystem.Sandbox restricts it to the
// configured roots.
type FileOpener interface {
	Open(name string) (*os.File, error)
}

// Stream reads the local file and copies the requested range to the client.
type Stream struct {
	opener           FileOpener
	redirectFallback bool
	chunkSize        int
	logger           *slog.Logger
}

type StreamOption func(*Stream)

// WithRedirectFallback lets Stream hand over to Redirect when the local file
// cannot be opened and the download has a public URL.
func WithRedirectFallback(allow bool) StreamOption {
	return func(s *Stream) {
		s.redirectFallback = allow
	}
}

func WithChunkSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

func NewStream(opener FileOpener, opts ...StreamOption) *Stream {
	s := &Stream{
		opener:    opener,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stream) Name() string { return string(MethodForce) }

func (s *Stream) Deliver(ctx context.Context, w http.ResponseWriter, job Job) Outcome {
	if job.Locator.IsRemote {
		return s.unusable(job, "remote locator")
	}

	f, err := s.opener.Open(job.Locator.Path)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to open file", "download_id", job.Download.ID, "path", job.Locator.Path, "err", err)
		return s.unusable(job, "cannot open file")
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return s.unusable(job, "not a regular file")
	}

	size := uint64(info.Size())
	rng := ferry.ParseRange(job.Request.RangeHeader, size)
	name := job.Download.FileName()

	contentType := ContentTypeByName(name)
	if contentType == defaultContentType {
		contentType = sniff(f)
	}

	status := Compose(w.Header(), Headers{
		FileName:    name,
		ContentType: contentType,
		Size:        size,
		Range:       rng,
	})

	if status == http.StatusRequestedRangeNotSatisfiable {
		w.WriteHeader(status)
		out := fatal(fmt.Errorf("download %d: %w", job.Download.ID, ferry.ErrRangeNotSatisfiable))
		out.Committed = true
		out.Partial = true
		return out
	}

	if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
		ResetHeaders(w.Header())
		return fatal(fmt.Errorf("download %d: seek: %w", job.Download.ID, err))
	}

	w.WriteHeader(status)

	n, err := s.copy(w, f, rng.Length)
	if err != nil {
		out := fatal(fmt.Errorf("download %d: %w: %w", job.Download.ID, ferry.ErrTransferFailed, err))
		out.Committed = true
		out.Partial = rng.IsRequest
		out.Bytes = n
		return out
	}

	out := ok(rng.IsRequest, n)
	out.Committed = true
	return out
}

// copy writes length bytes from r in chunks, flushing after each one. A client
// that goes away shows up as a write error.
func (s *Stream) copy(w http.ResponseWriter, r io.Reader, length uint64) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, s.chunkSize)

	var written int64
	remaining := length

	for remaining > 0 {
		chunk := buf
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		nr, readErr := io.ReadFull(r, chunk)
		if nr > 0 {
			nw, writeErr := w.Write(chunk[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			remaining -= uint64(nw)

			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, err
			}
		}

		if readErr != nil {
			if remaining == 0 {
				break
			}
			return written, readErr
		}
	}

	return written, nil
}

func (s *Stream) unusable(job Job, reason string) Outcome {
	if s.redirectFallback && remoteResolvable(job) {
		return retry(reason)
	}
	return notFound(job)
}

// sniff detects the content type from the first bytes of r. The read
// position is left wherever detection stopped.
func sniff(r io.Reader) string {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return defaultContentType
	}
	return mt.String()
}
