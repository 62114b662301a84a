// Package repository persists type metadata and analysis runs through gorm.
package repository

import (
	"context"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
)

// MetadataRepository stores the debug metadata of the analyzed binary.
type MetadataRepository interface {
	// ImportSnapshot upserts every type, formal parameter list and heap
	// allocation site of the snapshot.
	ImportSnapshot(ctx context.Context, snap *metadata.Snapshot) error

	// ExportSnapshot reads the stored metadata back, sorted like
	// MemoryStore.Export.
	ExportSnapshot(ctx context.Context) (*metadata.Snapshot, error)

	// LoadStore reads the stored metadata into a MemoryStore.
	LoadStore(ctx context.Context) (*metadata.MemoryStore, error)
}

// RunRepository stores analysis runs and their resolved entries.
type RunRepository interface {
	// CreateRun inserts a running run. A missing RunID is generated.
	CreateRun(ctx context.Context, run *Run) error

	// SaveResults stores every entry of the store with its leaf counters.
	SaveResults(ctx context.Context, runID string, store *histogram.Store) error

	// FinishRun sets the final status, statistics and end time of a run.
	FinishRun(ctx context.Context, runID string, status RunStatus, stats *statistics.Statistics, info string) error

	// GetRun retrieves a run by its id.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// ListEntries returns the entries of a run, most accessed first,
	// without layouts and fields.
	ListEntries(ctx context.Context, runID string, filter EntryFilter) ([]*Entry, error)

	// GetEntry returns one entry with its layout and fields.
	GetEntry(ctx context.Context, runID string, id int64) (*Entry, error)
}

// EntryFilter narrows ListEntries. Zero values select everything.
type EntryFilter struct {
	TypePrefix string
	Limit      int
}
