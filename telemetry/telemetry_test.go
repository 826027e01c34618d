package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrydl/ferry"
	ferryhttp "github.com/ferrydl/ferry/http"
	"github.com/ferrydl/ferry/telemetry"
)

var (
	_ ferry.Recorder            = (*telemetry.Telemetry)(nil)
	_ ferryhttp.RequestRecorder = (*telemetry.Telemetry)(nil)
)

func scrape(t *testing.T, tel *telemetry.Telemetry) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestTelemetry_Disabled(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	tel.RecordDelivery(ctx, "force", "ok", 10)
	tel.RecordTracked(ctx)
	tel.RecordRequest(ctx, http.MethodGet, http.StatusOK)

	code, _ := scrape(t, tel)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_Counters(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{Enabled: true, Path: "/metrics"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	ctx := context.Background()
	tel.RecordDelivery(ctx, "force", "ok", 1024)
	tel.RecordDelivery(ctx, "force", "ok", 1024)
	tel.RecordDelivery(ctx, "redirect", "ok", 0)
	tel.RecordDelivery(ctx, "xsendfile", "fallback", 0)
	tel.RecordTracked(ctx)
	tel.RecordRequest(ctx, http.MethodGet, http.StatusPartialContent)

	code, body := scrape(t, tel)
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, `ferry_deliveries_total{outcome="ok",strategy="force"} 2`)
	assert.Contains(t, body, `ferry_deliveries_total{outcome="ok",strategy="redirect"} 1`)
	assert.Contains(t, body, `ferry_deliveries_total{outcome="fallback",strategy="xsendfile"} 1`)
	assert.Contains(t, body, `ferry_delivered_bytes_total{strategy="force"} 2048`)
	assert.NotContains(t, body, `ferry_delivered_bytes_total{strategy="redirect"}`)
	assert.Contains(t, body, `ferry_tracked_downloads_total 1`)
	assert.Contains(t, body, `ferry_http_requests_total{method="GET",status="206"} 1`)
}

func TestTelemetry_Independent(t *testing.T) {
	a, err := telemetry.New(telemetry.Config{Enabled: true})
	require.NoError(t, err)
	b, err := telemetry.New(telemetry.Config{Enabled: true})
	require.NoError(t, err)

	a.RecordTracked(context.Background())

	_, bodyB := scrape(t, b)
	assert.NotContains(t, bodyB, "ferry_tracked_downloads_total 1")
}
