package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

func TestFetch(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	require.NoError(t, s.Upload(ctx, "inputs/profile.json", strings.NewReader("{}")))

	tests := []struct {
		name     string
		path     string
		storage  Storage
		wantCode string
		wantBase string
	}{
		{name: "local path", path: "/data/profile.json", storage: s, wantBase: "profile.json"},
		{name: "storage uri", path: "storage://inputs/profile.json", storage: s, wantBase: "profile.json"},
		{name: "empty key", path: "storage://", storage: s, wantCode: errors.CodeInvalidArgument},
		{name: "missing object", path: "storage://inputs/other.json", storage: s, wantCode: errors.CodeNotFound},
		{name: "no storage", path: "storage://inputs/profile.json", wantCode: errors.CodeFailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cleanup, err := Fetch(ctx, tt.storage, tt.path, t.TempDir())
			require.NotNil(t, cleanup)
			defer cleanup()
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(filepath.Base(got), tt.wantBase), got)
			if IsStorageURI(tt.path) {
				data, err := os.ReadFile(got)
				require.NoError(t, err)
				assert.Equal(t, "{}", string(data))
			} else {
				assert.Equal(t, tt.path, got)
			}
		})
	}
}

func TestFetch_SameBaseName(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	require.NoError(t, s.Upload(ctx, "hosts/a/profile.json", strings.NewReader(`{"host":"a"}`)))
	require.NoError(t, s.Upload(ctx, "hosts/b/profile.json", strings.NewReader(`{"host":"b"}`)))
	dir := t.TempDir()

	first, cleanupFirst, err := Fetch(ctx, s, "storage://hosts/a/profile.json", dir)
	require.NoError(t, err)
	second, cleanupSecond, err := Fetch(ctx, s, "storage://hosts/b/profile.json", dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, `{"host":"a"}`, string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, `{"host":"b"}`, string(data))

	cleanupFirst()
	cleanupSecond()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPublishReport(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	report := filepath.Join(t.TempDir(), "stats.yaml")
	require.NoError(t, os.WriteFile(report, []byte("total_accesses: 3\n"), 0644))

	url, err := PublishReport(ctx, s, "run-1", report)
	require.NoError(t, err)
	assert.Equal(t, s.GetURL("runs/run-1/stats.yaml"), url)

	exists, err := s.Exists(ctx, RunKey("run-1", "stats.yaml"))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = PublishReport(ctx, s, "", report)
	assert.True(t, errors.IsInvalidArgument(err))
}
