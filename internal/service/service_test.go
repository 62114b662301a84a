package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/perf-analysis/fieldaccess/internal/cache"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/profile"
	"github.com/perf-analysis/fieldaccess/internal/repository"
	"github.com/perf-analysis/fieldaccess/internal/storage"
	"github.com/perf-analysis/fieldaccess/internal/testutil"
	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

var (
	pairStack = metadata.CallStack{{FunctionName: "operator new"}, {FunctionName: "make_pair", LineOffset: 1}}
	longStack = metadata.CallStack{{FunctionName: "operator new"}, {FunctionName: "make_long", LineOffset: 2}}
)

type fixture struct {
	dir          string
	metadataPath string
	profilePath  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	store := testutil.NewStoreBuilder().
		Struct("Pair", 16, testutil.Field("a", "int", 0), testutil.Field("b", "long", 8)).
		AllocSite(metadata.Frame{FunctionName: "make_pair", LineOffset: 1}, "Pair").
		AllocSite(metadata.Frame{FunctionName: "make_long", LineOffset: 2}, "long").
		Build()

	f := fixture{
		dir:          dir,
		metadataPath: testutil.WriteSnapshot(t, dir, "types.json", store),
		profilePath:  filepath.Join(dir, "profile.json"),
	}

	p := &profile.Profile{}
	p.Add(pairStack, []uint64{3, 5})
	p.Add(longStack, []uint64{7})
	require.NoError(t, p.Save(f.profilePath))
	return f
}

func setupRepositories(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := repository.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(context.Background(), db))

	repos := repository.NewRepositories(db)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) (*Service, *storage.LocalStorage) {
	t.Helper()
	st, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	svc, err := New(cfg, &utils.NullLogger{}, append([]Option{WithStorage(st)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background(), false))
	return svc, st
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.True(t, errors.IsInvalidArgument(err))
	})

	t.Run("default logger", func(t *testing.T) {
		svc, err := New(config.Default(), nil)
		require.NoError(t, err)
		assert.NotNil(t, svc.logger)
		assert.Nil(t, svc.Repositories())
	})
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("without persistence", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output.Path = filepath.Join(f.dir, "dump.txt")
		svc, _ := newService(t, cfg)

		res, err := svc.Analyze(ctx, AnalyzeRequest{ProfilePath: f.profilePath, MetadataPath: f.metadataPath})
		require.NoError(t, err)
		assert.Empty(t, res.RunID)
		assert.Equal(t, 2, res.Results.Store.Len())
		assert.Equal(t, uint64(15), res.Results.Stats.TotalAccesses)
		assert.Equal(t, []string{cfg.Output.Path}, res.Outputs)
		require.Len(t, res.Stages, 4)
		assert.Equal(t, "build histograms", res.Stages[2].Name)

		data, err := os.ReadFile(cfg.Output.Path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "function_name: make_pair")
	})

	t.Run("persisted run", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output.Path = filepath.Join(f.dir, "flame.txt")
		cfg.Output.Flamegraph = true
		repos := setupRepositories(t)
		svc, st := newService(t, cfg, WithRepositories(repos))

		res, err := svc.Analyze(ctx, AnalyzeRequest{ProfilePath: f.profilePath, MetadataPath: f.metadataPath, Persist: true})
		require.NoError(t, err)
		require.NotEmpty(t, res.RunID)

		run, err := repos.Run.GetRun(ctx, res.RunID)
		require.NoError(t, err)
		assert.Equal(t, repository.RunStatusCompleted, run.Status)
		require.NotNil(t, run.Stats)
		assert.Equal(t, uint64(2), run.Stats.TotalAllocations)

		entries, err := repos.Run.ListEntries(ctx, res.RunID, repository.EntryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Pair", entries[0].TypeName)

		key := storage.RunKey(res.RunID, "flame.txt")
		exists, err := st.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, st.GetURL(key), res.ReportURL)
	})

	t.Run("persist without database", func(t *testing.T) {
		svc, _ := newService(t, config.Default())
		_, err := svc.Analyze(ctx, AnalyzeRequest{ProfilePath: f.profilePath, MetadataPath: f.metadataPath, Persist: true})
		assert.True(t, errors.IsFailedPrecondition(err))
	})

	t.Run("missing metadata", func(t *testing.T) {
		svc, _ := newService(t, config.Default())
		_, err := svc.Analyze(ctx, AnalyzeRequest{ProfilePath: f.profilePath})
		assert.True(t, errors.IsInvalidArgument(err))
	})

	t.Run("unreadable profile", func(t *testing.T) {
		svc, _ := newService(t, config.Default())
		_, err := svc.Analyze(ctx, AnalyzeRequest{ProfilePath: filepath.Join(f.dir, "missing.json"), MetadataPath: f.metadataPath})
		assert.Error(t, err)
	})

	t.Run("unsupported granularity marks run failed", func(t *testing.T) {
		p, err := profile.Load(f.profilePath)
		require.NoError(t, err)
		p.GranularityBytes = 4
		path := filepath.Join(f.dir, "coarse.json")
		require.NoError(t, p.Save(path))

		repos := setupRepositories(t)
		svc, _ := newService(t, config.Default(), WithRepositories(repos))
		_, err = svc.Analyze(ctx, AnalyzeRequest{ProfilePath: path, MetadataPath: f.metadataPath, Persist: true})
		require.True(t, errors.IsUnimplemented(err))

		runs, err := repos.Run.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, repository.RunStatusFailed, runs[0].Status)
		assert.NotEmpty(t, runs[0].StatusInfo)
	})
}

func TestService_Metadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("database source without database", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metadata.Source = "database"
		svc, err := New(cfg, &utils.NullLogger{})
		require.NoError(t, err)
		_, err = svc.LoadMetadata(ctx, "")
		assert.True(t, errors.IsFailedPrecondition(err))
	})

	t.Run("import then load from database", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metadata.Source = "database"
		svc, _ := newService(t, cfg, WithRepositories(setupRepositories(t)))

		snap, err := svc.ImportMetadata(ctx, f.metadataPath)
		require.NoError(t, err)
		assert.NotEmpty(t, snap.Types)

		store, err := svc.LoadMetadata(ctx, "")
		require.NoError(t, err)
		desc, err := store.LookupType("Pair")
		require.NoError(t, err)
		assert.Equal(t, int64(16), desc.Size)
	})

	t.Run("configured path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metadata.Path = f.metadataPath
		svc, _ := newService(t, cfg)
		store, err := svc.LoadMetadata(ctx, "")
		require.NoError(t, err)
		_, err = store.LookupHeapAllocSite(metadata.Frame{FunctionName: "make_pair", LineOffset: 1})
		assert.NoError(t, err)
	})

	t.Run("toml snapshot", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "types.toml", `
[[types]]
name = "Node"
size = 16
kind = "struct"

  [[types.fields]]
  name = "next"
  type = "Node *"
  offset = 0

  [[types.fields]]
  name = "value"
  type = "long"
  offset = 8
`)
		svc, _ := newService(t, config.Default())
		store, err := svc.LoadMetadata(ctx, path)
		require.NoError(t, err)
		desc, err := store.LookupType("Node")
		require.NoError(t, err)
		assert.Len(t, desc.Fields, 2)
		assert.Equal(t, int64(8), desc.Fields[1].Offset)
	})

	t.Run("import needs database", func(t *testing.T) {
		svc, _ := newService(t, config.Default())
		_, err := svc.ImportMetadata(ctx, f.metadataPath)
		assert.True(t, errors.IsFailedPrecondition(err))
	})
}

func TestService_LayoutCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := AnalyzeRequest{ProfilePath: f.profilePath, MetadataPath: f.metadataPath}

	t.Run("reuses cached trees", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := cache.NewRedisLayoutCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", 0)
		svc, _ := newService(t, config.Default(), WithLayoutCache(c))
		defer svc.Close()

		first, err := svc.Analyze(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, mr.Keys())

		second, err := svc.Analyze(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.Results.Stats, second.Results.Stats)
		assert.Equal(t, first.Results.Store.Len(), second.Results.Store.Len())
	})

	t.Run("unreachable cache is skipped", func(t *testing.T) {
		cfg := config.Default()
		cfg.Cache.Enabled = true
		cfg.Cache.Addr = "127.0.0.1:1"
		svc, _ := newService(t, cfg)
		assert.Nil(t, svc.cache)

		_, err := svc.Analyze(ctx, req)
		assert.NoError(t, err)
	})
}

func TestService_HealthCheck(t *testing.T) {
	svc, _ := newService(t, config.Default(), WithRepositories(setupRepositories(t)))
	assert.NoError(t, svc.HealthCheck(context.Background()))
	assert.NoError(t, svc.Close())
}
