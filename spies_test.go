package ferry_test

import (
	"context"
	"io"
	"time"

	"github.com/ferrydl/ferry"
	"github.com/stretchr/testify/mock"
)

type SpyDownloadRepo struct {
	mock.Mock
}

func (s *SpyDownloadRepo) Get(ctx context.Context, id int64) (ferry.Download, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(ferry.Download), args.Error(1)
}

func (s *SpyDownloadRepo) GetByName(ctx context.Context, name string) (ferry.Download, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(ferry.Download), args.Error(1)
}

func (s *SpyDownloadRepo) Upsert(ctx context.Context, d ferry.Download) (ferry.Download, bool, error) {
	args := s.Called(ctx, d)
	return args.Get(0).(ferry.Download), args.Bool(1), args.Error(2)
}

func (s *SpyDownloadRepo) Delete(ctx context.Context, id int64) error {
	args := s.Called(ctx, id)
	return args.Error(0)
}

func (s *SpyDownloadRepo) List(ctx context.Context, q ferry.ListQuery) (ferry.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(ferry.ListResult), args.Error(1)
}

func (s *SpyDownloadRepo) RecordDownload(ctx context.Context, e ferry.Event) (ferry.Event, error) {
	args := s.Called(ctx, e)
	return args.Get(0).(ferry.Event), args.Error(1)
}

func (s *SpyDownloadRepo) ListEvents(ctx context.Context, downloadID int64, limit int) ([]ferry.Event, error) {
	args := s.Called(ctx, downloadID, limit)
	return args.Get(0).([]ferry.Event), args.Error(1)
}

func (s *SpyDownloadRepo) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	args := s.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type SpyFileStorage struct {
	mock.Mock
	dir string
}

func (s *SpyFileStorage) Write(ctx context.Context, path string, content io.Reader) (ferry.SaveResult, error) {
	args := s.Called(ctx, path, content)
	return args.Get(0).(ferry.SaveResult), args.Error(1)
}

func (s *SpyFileStorage) Delete(ctx context.Context, path string) error {
	args := s.Called(ctx, path)
	return args.Error(0)
}

func (s *SpyFileStorage) List(ctx context.Context) ([]ferry.FileEntry, error) {
	args := s.Called(ctx)
	return args.Get(0).([]ferry.FileEntry), args.Error(1)
}

func (s *SpyFileStorage) Dir() string {
	return s.dir
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
