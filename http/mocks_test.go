package http_test

import (
	"context"
	"net/http"
	"os"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/delivery"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, idOrName string) (ferry.Download, error) {
	args := m.Called(ctx, idOrName)
	return args.Get(0).(ferry.Download), args.Error(1)
}

func (m *MockService) List(ctx context.Context, query ferry.ListQuery) (ferry.ListResult, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(ferry.ListResult), args.Error(1)
}

func (m *MockService) Events(ctx context.Context, id int64, limit int) ([]ferry.Event, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ferry.Event), args.Error(1)
}

type MockGate struct {
	mock.Mock
}

func (m *MockGate) Check(ctx context.Context, d *ferry.Download, req ferry.RequestContext) error {
	args := m.Called(ctx, d, req)
	return args.Error(0)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, raw string, req ferry.RequestContext) (ferry.Locator, error) {
	args := m.Called(ctx, raw, req)
	return args.Get(0).(ferry.Locator), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, w http.ResponseWriter, job delivery.Job) delivery.Outcome {
	args := m.Called(ctx, w, job)
	return args.Get(0).(delivery.Outcome)
}

type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Track(ctx context.Context, downloadID int64, userID, ip string, isRange bool) bool {
	args := m.Called(ctx, downloadID, userID, ip, isRange)
	return args.Bool(0)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*ferry.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ferry.User), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRequest(ctx context.Context, method string, status int) {
	m.Called(ctx, method, status)
}

// SpyDownloadRepo spies on the call the tracker makes. Any other call
// panics on the nil embedded repo.
type SpyDownloadRepo struct {
	ferry.DownloadRepo
	mock.Mock
}

func (s *SpyDownloadRepo) RecordDownload(ctx context.Context, e ferry.Event) (ferry.Event, error) {
	args := s.Called(ctx, e)
	return args.Get(0).(ferry.Event), args.Error(1)
}

type osOpener struct{}

func (osOpener) Open(name string) (*os.File, error) {
	return os.Open(name)
}
