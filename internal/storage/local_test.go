package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.GetBasePath())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Upload(ctx, "profiles/a.json", strings.NewReader(`{"records":[]}`)))

	exists, err := s.Exists(ctx, "profiles/a.json")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Download(ctx, "profiles/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, string(data))
}

func TestLocalStorage_Files(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	src := filepath.Join(t.TempDir(), "metadata.toml")
	require.NoError(t, os.WriteFile(src, []byte("granularity = 8\n"), 0644))

	require.NoError(t, s.UploadFile(ctx, "meta/metadata.toml", src))

	dst := filepath.Join(t.TempDir(), "out", "metadata.toml")
	require.NoError(t, s.DownloadFile(ctx, "meta/metadata.toml", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "granularity = 8\n", string(data))

	err = s.UploadFile(ctx, "x", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, errors.CodeStorageError, errors.GetErrorCode(err))
}

func TestLocalStorage_Missing(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	_, err := s.Download(ctx, "nope")
	assert.True(t, errors.IsNotFound(err))

	exists, err := s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, s.Delete(ctx, "nope"))
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	require.NoError(t, s.Upload(ctx, "k", strings.NewReader("v")))
	require.NoError(t, s.Delete(ctx, "k"))

	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newLocal(t)

	assert.ErrorIs(t, s.Upload(ctx, "k", strings.NewReader("v")), context.Canceled)
	_, err := s.Download(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStorage_GetURL(t *testing.T) {
	s := newLocal(t)
	assert.Equal(t, filepath.Join(s.GetBasePath(), "runs", "r1", "stats.yaml"), s.GetURL("runs/r1/stats.yaml"))
}

func TestNewStorage_Local(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(&config.StorageConfig{LocalPath: dir})
	require.NoError(t, err)

	local, ok := s.(*LocalStorage)
	require.True(t, ok)
	assert.Equal(t, dir, local.GetBasePath())
}
