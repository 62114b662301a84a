package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// LocalStorage implements Storage on a directory tree.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./storage"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "create storage directory", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Upload writes reader to key.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return copyTo(s.getFullPath(key), reader)
}

// UploadFile copies localPath to key.
func (s *LocalStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, "open source file", err)
	}
	defer src.Close()
	return s.Upload(ctx, key, src)
}

// Download opens key.
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("object not found: %s", key)
		}
		return nil, errors.Wrap(errors.CodeStorageError, "open "+key, err)
	}
	return file, nil
}

// DownloadFile copies key to localPath.
func (s *LocalStorage) DownloadFile(ctx context.Context, key string, localPath string) error {
	src, err := s.Download(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()
	return copyTo(localPath, src)
}

// Delete removes key. A missing key is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.getFullPath(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.CodeStorageError, "delete "+key, err)
	}
	return nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.getFullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.CodeStorageError, "stat "+key, err)
	}
	return true, nil
}

// GetURL returns the file path for local storage.
func (s *LocalStorage) GetURL(key string) string {
	return s.getFullPath(key)
}

// GetBasePath returns the base path for the local storage.
func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}

func (s *LocalStorage) getFullPath(key string) string {
	return filepath.Join(s.basePath, key)
}

func copyTo(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.CodeStorageError, "create directory", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, "create file", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return errors.Wrap(errors.CodeStorageError, "write file", err)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrap(errors.CodeStorageError, "close file", err)
	}
	return nil
}
