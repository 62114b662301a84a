package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/pkg/writer"
)

// WriteSnapshot exports store into dir/name, encoded by the extension of
// name, and returns the path.
func WriteSnapshot(t *testing.T, dir, name string, store *metadata.MemoryStore) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := writer.WriteToFile(store.Export(), path); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	return path
}

// WriteFile creates dir/name with content and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
