// Package telemetry exposes ferry's delivery counters as Prometheus metrics
// through an OpenTelemetry meter.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/ferrydl/ferry"

// Config holds telemetry configuration.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// Telemetry records delivery, tracking and request counters. The zero value
// records nothing.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	deliveries     metric.Int64Counter
	deliveredBytes metric.Int64Counter
	requests       metric.Int64Counter
	tracked        metric.Int64Counter
}

// New creates the meter provider and its instruments. Metrics go to a
// private registry so several instances can coexist.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutUnits(),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	t := &Telemetry{
		provider: provider,
		registry: registry,
	}

	if err := t.initializeMetrics(provider.Meter(meterName)); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics(meter metric.Meter) error {
	var err error

	t.deliveries, err = meter.Int64Counter(
		"ferry_deliveries",
		metric.WithDescription("Delivery attempts by strategy and outcome"),
	)
	if err != nil {
		return fmt.Errorf("ferry_deliveries counter: %w", err)
	}

	t.deliveredBytes, err = meter.Int64Counter(
		"ferry_delivered_bytes",
		metric.WithDescription("Bytes written to clients by the streaming strategy"),
	)
	if err != nil {
		return fmt.Errorf("ferry_delivered_bytes counter: %w", err)
	}

	t.requests, err = meter.Int64Counter(
		"ferry_http_requests",
		metric.WithDescription("HTTP requests by method and status"),
	)
	if err != nil {
		return fmt.Errorf("ferry_http_requests counter: %w", err)
	}

	t.tracked, err = meter.Int64Counter(
		"ferry_tracked_downloads",
		metric.WithDescription("Downloads counted by the tracker"),
	)
	if err != nil {
		return fmt.Errorf("ferry_tracked_downloads counter: %w", err)
	}

	return nil
}

func (t *Telemetry) RecordDelivery(ctx context.Context, strategy, outcome string, bytes int64) {
	if t.deliveries != nil {
		t.deliveries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("outcome", outcome),
		))
	}
	if t.deliveredBytes != nil && bytes > 0 {
		t.deliveredBytes.Add(ctx, bytes, metric.WithAttributes(attribute.String("strategy", strategy)))
	}
}

func (t *Telemetry) RecordTracked(ctx context.Context) {
	if t.tracked != nil {
		t.tracked.Add(ctx, 1)
	}
}

func (t *Telemetry) RecordRequest(ctx context.Context, method string, status int) {
	if t.requests != nil {
		t.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", strconv.Itoa(status)),
		))
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
