package mock

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/perf-analysis/fieldaccess/internal/storage"
)

// MockStorage is a mock of storage.Storage for report publishing and
// storage:// inputs.
type MockStorage struct {
	mock.Mock
}

// Upload mocks the Upload method.
func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

// UploadFile mocks the UploadFile method.
func (m *MockStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	args := m.Called(ctx, key, localPath)
	return args.Error(0)
}

// Download mocks the Download method.
func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// DownloadFile mocks the DownloadFile method.
func (m *MockStorage) DownloadFile(ctx context.Context, key string, localPath string) error {
	args := m.Called(ctx, key, localPath)
	return args.Error(0)
}

// Delete mocks the Delete method.
func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Exists mocks the Exists method.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// GetURL mocks the GetURL method.
func (m *MockStorage) GetURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// ExpectPublishReport expects the report at localPath to be uploaded under
// the prefix of runID. A nil err also expects the URL lookup.
func (m *MockStorage) ExpectPublishReport(runID, localPath, url string, err error) *mock.Call {
	key := storage.RunKey(runID, filepath.Base(localPath))
	call := m.On("UploadFile", mock.Anything, key, localPath).Return(err)
	if err == nil {
		m.On("GetURL", key).Return(url)
	}
	return call
}

// ExpectFetch expects the object behind key to be downloaded into a fresh
// file in dir named after the key.
func (m *MockStorage) ExpectFetch(key, dir string, err error) *mock.Call {
	inDir := mock.MatchedBy(func(local string) bool {
		return filepath.Dir(local) == filepath.Clean(dir) &&
			strings.HasSuffix(filepath.Base(local), "-"+path.Base(key))
	})
	return m.On("DownloadFile", mock.Anything, key, inDir).Return(err)
}

var _ storage.Storage = (*MockStorage)(nil)
