package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// URIScheme prefixes input paths that live in the configured storage
// instead of on the local file system.
const URIScheme = "storage://"

// IsStorageURI reports whether p names an object in storage.
func IsStorageURI(p string) bool {
	return strings.HasPrefix(p, URIScheme)
}

// RunKey returns the object key of a report artifact of a run.
func RunKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

// Fetch resolves an input path. Local paths are returned unchanged; storage
// URIs are downloaded into a fresh file in dir whose name ends with the base
// name of the key, so extension based format detection still works. The
// returned cleanup removes the downloaded file and is never nil.
func Fetch(ctx context.Context, s Storage, p, dir string) (string, func(), error) {
	noop := func() {}
	if !IsStorageURI(p) {
		return p, noop, nil
	}
	key := strings.TrimPrefix(p, URIScheme)
	if key == "" {
		return "", noop, errors.InvalidArgumentf("empty storage key in %q", p)
	}
	if s == nil {
		return "", noop, errors.FailedPreconditionf("no storage configured for %s", p)
	}

	f, err := os.CreateTemp(dir, "*-"+path.Base(key))
	if err != nil {
		return "", noop, errors.Wrap(errors.CodeStorageError, "create download file", err)
	}
	local := f.Name()
	cleanup := func() { _ = os.Remove(local) }
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, errors.Wrap(errors.CodeStorageError, "create download file", err)
	}
	if err := s.DownloadFile(ctx, key, local); err != nil {
		cleanup()
		return "", noop, err
	}
	return local, cleanup, nil
}

// PublishReport uploads a generated report file under the run's prefix and
// returns its URL.
func PublishReport(ctx context.Context, s Storage, runID, localPath string) (string, error) {
	if runID == "" {
		return "", errors.InvalidArgumentf("run id is required")
	}
	key := RunKey(runID, filepath.Base(localPath))
	if err := s.UploadFile(ctx, key, localPath); err != nil {
		return "", err
	}
	return s.GetURL(key), nil
}
