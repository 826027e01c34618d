package delivery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ferrydl/ferry"
)

// OptionUnavailable is the option key persisted once accelerated transfer
// has been found unsupported.
const OptionUnavailable = "xsendfile_missing"

// Variant is the header a fronting server understands for handing off a
// file transfer.
type Variant string

const (
	VariantNone     Variant = ""
	VariantSendfile Variant = "X-Sendfile"
	VariantLighttpd Variant = "X-Lighttpd-Sendfile"
	VariantAccel    Variant = "X-Accel-Redirect"
)

// DetectVariant maps a server software string, as found in SERVER_SOFTWARE,
// to the header variant it supports.
func DetectVariant(software string) Variant {
	s := strings.ToLower(software)
	switch {
	case strings.Contains(s, "xsendfile"):
		return VariantSendfile
	case strings.Contains(s, "lighttpd"):
		return VariantLighttpd
	case strings.Contains(s, "nginx"), strings.Contains(s, "cherokee"):
		return VariantAccel
	default:
		return VariantNone
	}
}

// Probe reports which accelerated transfer variant is available. Once no
// variant is found, the finding is persisted through the OptionStore and
// cached, so later requests skip detection entirely.
type Probe struct {
	software string
	options  ferry.OptionStore
	logger   *slog.Logger

	unavailable atomic.Bool
	loadOnce    sync.Once
	warnOnce    sync.Once
}

// NewProbe returns a probe for the given server software. An empty string
// falls back to the SERVER_SOFTWARE environment variable. options may be nil.
func NewProbe(software string, options ferry.OptionStore, logger *slog.Logger) *Probe {
	if software == "" {
		software = os.Getenv("SERVER_SOFTWARE")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		software: software,
		options:  options,
		logger:   logger,
	}
}

// Unavailable reports whether accelerated transfer was previously found
// unsupported. The persisted flag is read at most once per process.
func (p *Probe) Unavailable(ctx context.Context) bool {
	p.loadOnce.Do(func() {
		if p.options == nil {
			return
		}
		v, err := p.options.GetOption(ctx, OptionUnavailable)
		if err != nil {
			if !errors.Is(err, ferry.ErrNotFound) {
				p.logger.WarnContext(ctx, "failed to read accelerated transfer option", "err", err)
			}
			return
		}
		if v == "1" {
			p.unavailable.Store(true)
		}
	})
	return p.unavailable.Load()
}

// Detect returns the supported variant. When none is supported it logs a
// warning once, persists the finding and returns VariantNone.
func (p *Probe) Detect(ctx context.Context) Variant {
	if v := DetectVariant(p.software); v != VariantNone {
		return v
	}

	p.markUnavailable(ctx)
	return VariantNone
}

func (p *Probe) markUnavailable(ctx context.Context) {
	p.unavailable.Store(true)

	p.warnOnce.Do(func() {
		p.logger.WarnContext(ctx, "accelerated transfer is not supported by the server, falling back to streaming",
			"server_software", p.software)

		if p.options == nil {
			return
		}
		if err := p.options.SetOption(context.WithoutCancel(ctx), OptionUnavailable, "1"); err != nil {
			p.logger.ErrorContext(ctx, "failed to persist accelerated transfer option", "err", err)
		}
	})
}
