package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/repository"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
)

// MockMetadataRepository is a mock implementation of the MetadataRepository interface.
type MockMetadataRepository struct {
	mock.Mock
}

// ImportSnapshot mocks the ImportSnapshot method.
func (m *MockMetadataRepository) ImportSnapshot(ctx context.Context, snap *metadata.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

// ExportSnapshot mocks the ExportSnapshot method.
func (m *MockMetadataRepository) ExportSnapshot(ctx context.Context) (*metadata.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metadata.Snapshot), args.Error(1)
}

// LoadStore mocks the LoadStore method.
func (m *MockMetadataRepository) LoadStore(ctx context.Context) (*metadata.MemoryStore, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metadata.MemoryStore), args.Error(1)
}

// MockRunRepository is a mock implementation of the RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

// CreateRun mocks the CreateRun method.
func (m *MockRunRepository) CreateRun(ctx context.Context, run *repository.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// SaveResults mocks the SaveResults method.
func (m *MockRunRepository) SaveResults(ctx context.Context, runID string, store *histogram.Store) error {
	args := m.Called(ctx, runID, store)
	return args.Error(0)
}

// FinishRun mocks the FinishRun method.
func (m *MockRunRepository) FinishRun(ctx context.Context, runID string, status repository.RunStatus, stats *statistics.Statistics, info string) error {
	args := m.Called(ctx, runID, status, stats, info)
	return args.Error(0)
}

// GetRun mocks the GetRun method.
func (m *MockRunRepository) GetRun(ctx context.Context, runID string) (*repository.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Run), args.Error(1)
}

// ListRuns mocks the ListRuns method.
func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]*repository.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Run), args.Error(1)
}

// ListEntries mocks the ListEntries method.
func (m *MockRunRepository) ListEntries(ctx context.Context, runID string, filter repository.EntryFilter) ([]*repository.Entry, error) {
	args := m.Called(ctx, runID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Entry), args.Error(1)
}

// GetEntry mocks the GetEntry method.
func (m *MockRunRepository) GetEntry(ctx context.Context, runID string, id int64) (*repository.Entry, error) {
	args := m.Called(ctx, runID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Entry), args.Error(1)
}

var (
	_ repository.MetadataRepository = (*MockMetadataRepository)(nil)
	_ repository.RunRepository      = (*MockRunRepository)(nil)
)
