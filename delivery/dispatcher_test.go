package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedStrategy struct {
	name  string
	out   delivery.Outcome
	calls int
}

func (s *fixedStrategy) Name() string { return s.name }

func (s *fixedStrategy) Deliver(context.Context, http.ResponseWriter, delivery.Job) delivery.Outcome {
	s.calls++
	return s.out
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"force", "xsendfile", "redirect"} {
		m, err := delivery.ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, delivery.Method(s), m)
	}

	_, err := delivery.ParseMethod("FORCE")
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	stream := &fixedStrategy{name: "force"}
	accel := &fixedStrategy{name: "xsendfile"}
	redirect := &fixedStrategy{name: "redirect"}

	assert.Equal(t, []delivery.Strategy{stream, redirect}, delivery.Chain(delivery.MethodForce, stream, accel, redirect))
	assert.Equal(t, []delivery.Strategy{accel, stream, redirect}, delivery.Chain(delivery.MethodAccelerated, stream, accel, redirect))
	assert.Equal(t, []delivery.Strategy{redirect}, delivery.Chain(delivery.MethodRedirect, stream, accel, redirect))
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Run("stops at first ok", func(t *testing.T) {
		first := &fixedStrategy{name: "a", out: delivery.Outcome{Kind: delivery.Retry, Reason: "nope"}}
		second := &fixedStrategy{name: "b", out: delivery.Outcome{Kind: delivery.Ok, Bytes: 10}}
		third := &fixedStrategy{name: "c", out: delivery.Outcome{Kind: delivery.Ok}}

		recorder := new(SpyRecorder)
		recorder.On("RecordDelivery", mock.Anything, "a", "retry", int64(0)).Once()
		recorder.On("RecordDelivery", mock.Anything, "b", "ok", int64(10)).Once()

		d := delivery.NewDispatcher([]delivery.Strategy{first, second, third}, delivery.WithRecorder(recorder))
		out := d.Dispatch(context.Background(), httptest.NewRecorder(), delivery.Job{})

		assert.Equal(t, delivery.Ok, out.Kind)
		assert.Equal(t, "b", out.Strategy)
		assert.Equal(t, 0, third.calls)
		recorder.AssertExpectations(t)
	})

	t.Run("fatal is never retried", func(t *testing.T) {
		first := &fixedStrategy{name: "a", out: delivery.Outcome{Kind: delivery.Fatal, Err: ferry.ErrRangeNotSatisfiable, Committed: true}}
		second := &fixedStrategy{name: "b", out: delivery.Outcome{Kind: delivery.Ok}}

		d := delivery.NewDispatcher([]delivery.Strategy{first, second})
		out := d.Dispatch(context.Background(), httptest.NewRecorder(), delivery.Job{})

		assert.Equal(t, delivery.Fatal, out.Kind)
		assert.ErrorIs(t, out.Err, ferry.ErrRangeNotSatisfiable)
		assert.Equal(t, 0, second.calls)
	})

	t.Run("exhausted chain is file not found", func(t *testing.T) {
		first := &fixedStrategy{name: "a", out: delivery.Outcome{Kind: delivery.Retry}}

		d := delivery.NewDispatcher([]delivery.Strategy{first})
		out := d.Dispatch(context.Background(), httptest.NewRecorder(), delivery.Job{})

		assert.Equal(t, delivery.Fatal, out.Kind)
		assert.False(t, out.Committed)
		assert.ErrorIs(t, out.Err, ferry.ErrFileNotFound)
	})
}

func TestNew(t *testing.T) {
	_, err := delivery.New(delivery.Config{Method: "sendfile"}, osOpener{}, nil, nil, nil)
	assert.Error(t, err)

	d, err := delivery.New(delivery.Config{}, osOpener{}, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestDispatcher_FallbackChains(t *testing.T) {
	publicURL := "https://cdn.example.com/a.zip"

	t.Run("stream failure falls back to redirect", func(t *testing.T) {
		d, err := delivery.New(delivery.Config{Method: delivery.MethodForce, RedirectFallback: true}, osOpener{}, nil, nil, nil)
		require.NoError(t, err)

		job := delivery.Job{
			Download: ferry.Download{ID: 1, FileURL: publicURL},
			Locator:  ferry.Locator{Path: filepath.Join(t.TempDir(), "gone.zip")},
		}
		rec := httptest.NewRecorder()
		out := d.Dispatch(context.Background(), rec, job)

		assert.Equal(t, delivery.Ok, out.Kind)
		assert.Equal(t, "redirect", out.Strategy)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, publicURL, rec.Header().Get("Location"))
	})

	t.Run("stream failure without fallback is file not found", func(t *testing.T) {
		d, err := delivery.New(delivery.Config{Method: delivery.MethodForce, RedirectFallback: false}, osOpener{}, nil, nil, nil)
		require.NoError(t, err)

		job := delivery.Job{
			Download: ferry.Download{ID: 1, FileURL: publicURL},
			Locator:  ferry.Locator{Path: filepath.Join(t.TempDir(), "gone.zip")},
		}
		rec := httptest.NewRecorder()
		out := d.Dispatch(context.Background(), rec, job)

		assert.Equal(t, delivery.Fatal, out.Kind)
		assert.ErrorIs(t, out.Err, ferry.ErrFileNotFound)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("unsupported accelerated transfer streams", func(t *testing.T) {
		path, data := writeFile(t, "a.bin", 300)

		d, err := delivery.New(delivery.Config{Method: delivery.MethodAccelerated, ServerSoftware: "Caddy"}, osOpener{}, nil, nil, nil)
		require.NoError(t, err)

		for range 2 {
			rec := httptest.NewRecorder()
			out := d.Dispatch(context.Background(), rec, localJob(path, ""))

			assert.Equal(t, delivery.Ok, out.Kind)
			assert.Equal(t, "force", out.Strategy)
			assert.Equal(t, data, rec.Body.Bytes())
		}
	})

	t.Run("missing file is not handed to the front server", func(t *testing.T) {
		d, err := delivery.New(delivery.Config{Method: delivery.MethodAccelerated, ServerSoftware: "nginx", RedirectFallback: true}, osOpener{}, nil, nil, nil)
		require.NoError(t, err)

		job := delivery.Job{
			Download: ferry.Download{ID: 1, FileURL: publicURL},
			Locator:  ferry.Locator{Path: filepath.Join(t.TempDir(), "gone.zip")},
		}
		rec := httptest.NewRecorder()
		out := d.Dispatch(context.Background(), rec, job)

		assert.Equal(t, "redirect", out.Strategy)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Accel-Redirect"))
	})

	t.Run("remote locator streams nothing and redirects", func(t *testing.T) {
		d, err := delivery.New(delivery.Config{Method: delivery.MethodAccelerated, ServerSoftware: "nginx", RedirectFallback: true}, osOpener{}, nil, nil, nil)
		require.NoError(t, err)

		job := delivery.Job{
			Download: ferry.Download{ID: 1, FileURL: publicURL},
			Locator:  ferry.Locator{IsRemote: true, Path: publicURL},
		}
		rec := httptest.NewRecorder()
		out := d.Dispatch(context.Background(), rec, job)

		assert.Equal(t, "redirect", out.Strategy)
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}
