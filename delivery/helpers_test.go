package delivery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/delivery"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type osOpener struct{}

func (osOpener) Open(name string) (*os.File, error) {
	return os.Open(name)
}

type SpyOptionStore struct {
	mock.Mock
}

func (s *SpyOptionStore) GetOption(ctx context.Context, key string) (string, error) {
	args := s.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (s *SpyOptionStore) SetOption(ctx context.Context, key, value string) error {
	args := s.Called(ctx, key, value)
	return args.Error(0)
}

type SpyRecorder struct {
	mock.Mock
}

func (s *SpyRecorder) RecordDelivery(ctx context.Context, strategy, outcome string, bytes int64) {
	s.Called(ctx, strategy, outcome, bytes)
}

func (s *SpyRecorder) RecordTracked(ctx context.Context) {
	s.Called(ctx)
}

// writeFile creates a file with n bytes of a repeating pattern and returns
// its path and content.
func writeFile(t *testing.T, name string, n int) (string, []byte) {
	t.Helper()

	data := make([]byte, n)
	for i := range data {
		data[i] = byte('a' + i%26)
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func localJob(path string, rangeHeader string) delivery.Job {
	return delivery.Job{
		Download: ferry.Download{ID: 1, Name: filepath.Base(path), FileURL: path},
		Locator:  ferry.Locator{Path: path},
		Request:  ferry.RequestContext{RangeHeader: rangeHeader},
	}
}
