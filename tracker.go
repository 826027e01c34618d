package ferry

import (
	"context"
	"log/slog"
	"time"
)

// Recorder receives delivery and tracking measurements. The telemetry
// package provides the OpenTelemetry implementation.
type Recorder interface {
	RecordDelivery(ctx context.Context, strategy, outcome string, bytes int64)
	RecordTracked(ctx context.Context)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) RecordDelivery(context.Context, string, string, int64) {}
func (NopRecorder) RecordTracked(context.Context)                         {}

const defaultTrackTimeout = 5 * time.Second

// Tracker counts full downloads. Range requests are never counted so that
// resumed downloads and media players seeking through a file do not inflate
// the totals.
type Tracker struct {
	repo     DownloadRepo
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
}

type TrackerOption func(*Tracker)

func WithTrackerRecorder(r Recorder) TrackerOption {
	return func(t *Tracker) {
		t.recorder = r
	}
}

func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithTrackTimeout bounds the time spent recording a download.
func WithTrackTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func NewTracker(repo DownloadRepo, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		repo:     repo,
		recorder: NopRecorder{},
		logger:   slog.Default(),
		timeout:  defaultTrackTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track increments the counter of a download and appends an event in one
// write. It is a no-op for range requests. Failures are logged and reported
// through the return value only; they never reach the client.
func (t *Tracker) Track(ctx context.Context, downloadID int64, userID, ip string, isRange bool) bool {
	if isRange {
		return false
	}

	// the response is already out; a client disconnect must not drop the count
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	event := Event{DownloadID: downloadID}
	if userID != "" {
		event.UserID = &userID
	}
	if ip != "" {
		event.IPAddress = &ip
	}

	if _, err := t.repo.RecordDownload(ctx, event); err != nil {
		t.logger.ErrorContext(ctx, "failed to record download", "download_id", downloadID, "err", err)
		return false
	}

	t.recorder.RecordTracked(ctx)

	return true
}
