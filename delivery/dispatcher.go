package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ferrydl/ferry"
)

// Method names the primary delivery strategy.
type Method string

const (
	MethodForce       Method = "force"
	MethodAccelerated Method = "xsendfile"
	MethodRedirect    Method = "redirect"
)

func (m Method) IsValid() bool {
	switch m {
	case MethodForce, MethodAccelerated, MethodRedirect:
		return true
	}
	return false
}

// ParseMethod converts a string to a Method. Returns error if invalid.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid delivery method: %q (must be force, xsendfile, or redirect)", s)
	}
	return m, nil
}

// Strategy is one way of sending a download.
type Strategy interface {
	Name() string
	Deliver(ctx context.Context, w http.ResponseWriter, job Job) Outcome
}

// Chain returns the ordered fallback chain for a method.
func Chain(m Method, stream, accelerated, redirect Strategy) []Strategy {
	switch m {
	case MethodAccelerated:
		return []Strategy{accelerated, stream, redirect}
	case MethodRedirect:
		return []Strategy{redirect}
	default:
		return []Strategy{stream, redirect}
	}
}

// Dispatcher runs a strategy chain until one strategy succeeds or fails.
type Dispatcher struct {
	chain    []Strategy
	recorder ferry.Recorder
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithRecorder(r ferry.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func NewDispatcher(chain []Strategy, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		chain:    chain,
		recorder: ferry.NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch tries each strategy in order. Retry outcomes are logged and the
// next strategy runs; the first Ok or Fatal outcome is returned. When every
// strategy asked to retry, the result is Fatal with ferry.ErrFileNotFound.
func (d *Dispatcher) Dispatch(ctx context.Context, w http.ResponseWriter, job Job) Outcome {
	for _, s := range d.chain {
		out := s.Deliver(ctx, w, job)
		out.Strategy = s.Name()
		d.recorder.RecordDelivery(ctx, out.Strategy, out.Kind.String(), out.Bytes)

		switch out.Kind {
		case Retry:
			d.logger.WarnContext(ctx, "delivery strategy unavailable, trying next",
				"download_id", job.Download.ID,
				"strategy", out.Strategy,
				"path", job.Locator.Path,
				"reason", out.Reason,
			)
			continue
		case Fatal:
			if out.Committed {
				d.logger.ErrorContext(ctx, "delivery failed after response started",
					"download_id", job.Download.ID,
					"strategy", out.Strategy,
					"bytes", out.Bytes,
					"err", out.Err,
				)
			}
		}

		return out
	}

	return Outcome{
		Kind: Fatal,
		Err:  fmt.Errorf("dispatch download %d: %w", job.Download.ID, ferry.ErrFileNotFound),
	}
}

// Config selects the delivery method and fallback policy.
type Config struct {
	Method           Method
	RedirectFallback bool
	AllowRemote      bool
	ServerSoftware   string
	ChunkSize        int
}

// New builds the dispatcher for cfg. Files are opened through opener and the
// accelerated transfer flag is persisted through options.
func New(cfg Config, opener FileOpener, options ferry.OptionStore, logger *slog.Logger, recorder ferry.Recorder) (*Dispatcher, error) {
	if cfg.Method == "" {
		cfg.Method = MethodForce
	}
	if !cfg.Method.IsValid() {
		return nil, fmt.Errorf("new dispatcher: invalid method: %s", cfg.Method)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = ferry.NopRecorder{}
	}

	stream := NewStream(opener,
		WithRedirectFallback(cfg.RedirectFallback),
		WithChunkSize(cfg.ChunkSize),
		WithStreamLogger(logger),
	)
	accelerated := NewAccelerated(NewProbe(cfg.ServerSoftware, options, logger),
		WithRemote(cfg.AllowRemote),
		WithFileCheck(opener),
	)

	return NewDispatcher(
		Chain(cfg.Method, stream, accelerated, Redirect{}),
		WithRecorder(recorder),
		WithLogger(logger),
	), nil
}
