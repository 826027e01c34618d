package delivery

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Accelerated hands the transfer to the fronting web server.
type Accelerated struct {
	probe       *Probe
	allowRemote bool
	root        string
	opener      FileOpener
}

type AcceleratedOption func(*Accelerated)

// WithRemote lets remote locators be handed to the fronting server instead
// of falling through to streaming.
func WithRemote(allow bool) AcceleratedOption {
	return func(a *Accelerated) {
		a.allowRemote = allow
	}
}

// WithRoot sets the directory X-Accel-Redirect paths are relative to. It
// defaults to the working directory.
func WithRoot(root string) AcceleratedOption {
	return func(a *Accelerated) {
		a.root = root
	}
}

// WithFileCheck opens local files through opener before handing them off.
// A file that cannot be opened falls through to the next strategy.
func WithFileCheck(opener FileOpener) AcceleratedOption {
	return func(a *Accelerated) {
		a.opener = opener
	}
}

func NewAccelerated(probe *Probe, opts ...AcceleratedOption) *Accelerated {
	a := &Accelerated{probe: probe}
	for _, opt := range opts {
		opt(a)
	}
	if a.root == "" {
		if wd, err := os.Getwd(); err == nil {
			a.root = wd
		}
	}
	return a
}

func (a *Accelerated) Name() string { return string(MethodAccelerated) }

func (a *Accelerated) Deliver(ctx context.Context, w http.ResponseWriter, job Job) Outcome {
	if a.probe.Unavailable(ctx) {
		return retry("accelerated transfer unavailable")
	}

	if job.Locator.IsRemote && !a.allowRemote {
		return retry("remote locator")
	}

	variant := a.probe.Detect(ctx)
	if variant == VariantNone {
		return retry("no supported server detected")
	}

	if !job.Locator.IsRemote && a.opener != nil {
		f, err := a.opener.Open(job.Locator.Path)
		if err != nil {
			return retry("file not readable")
		}
		_ = f.Close()
	}

	status := Compose(w.Header(), Headers{
		FileName:   job.Download.FileName(),
		OmitLength: true,
	})

	w.Header().Set(string(variant), a.headerValue(variant, job.Locator.Path))
	w.WriteHeader(status)

	return Outcome{Kind: Ok, Committed: true, Partial: job.Request.RangeHeader != ""}
}

func (a *Accelerated) headerValue(variant Variant, path string) string {
	if variant != VariantAccel || a.root == "" || !filepath.IsAbs(path) {
		return path
	}

	rel, err := filepath.Rel(a.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return "/" + filepath.ToSlash(rel)
}
