// Package service wires metadata, resolution, the histogram pipeline,
// persistence and object storage into one analysis workflow.
package service

import (
	"bytes"
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/perf-analysis/fieldaccess/internal/cache"
	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/profile"
	"github.com/perf-analysis/fieldaccess/internal/repository"
	"github.com/perf-analysis/fieldaccess/internal/resolver"
	"github.com/perf-analysis/fieldaccess/internal/storage"
	"github.com/perf-analysis/fieldaccess/pkg/compression"
	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/telemetry"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// Service runs analyses with the components selected by the configuration.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	db      *repository.Repositories
	storage storage.Storage
	cache   *cache.RedisLayoutCache
}

// Option configures a Service.
type Option func(*Service)

// WithRepositories uses repos instead of connecting to the configured
// database.
func WithRepositories(repos *repository.Repositories) Option {
	return func(s *Service) { s.db = repos }
}

// WithStorage uses st instead of the configured storage.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

// WithLayoutCache uses c instead of connecting to the configured cache.
func WithLayoutCache(c *cache.RedisLayoutCache) Option {
	return func(s *Service) { s.cache = c }
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.InvalidArgumentf("config is nil")
	}
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	s := &Service{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize connects the components the configuration asks for. The
// database is opened when needDB is set or metadata comes from it. An
// unreachable cache is logged and skipped.
func (s *Service) Initialize(ctx context.Context, needDB bool) error {
	if s.storage == nil {
		if err := s.initStorage(); err != nil {
			return err
		}
	}
	if s.db == nil && (needDB || s.config.Metadata.Source == "database") {
		if err := s.initDatabase(ctx); err != nil {
			return err
		}
	}
	if s.cache == nil && s.config.Cache.Enabled {
		s.initCache(ctx)
	}
	return nil
}

func (s *Service) initDatabase(ctx context.Context) error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)
	repos, err := repository.Connect(ctx, &s.config.Database)
	if err != nil {
		return err
	}
	s.db = repos
	return nil
}

func (s *Service) initStorage() error {
	st, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = st
	return nil
}

func (s *Service) initCache(ctx context.Context) {
	c, err := cache.NewRedisLayoutCache(ctx, s.config.Cache)
	if err != nil {
		s.logger.Warn("Layout cache disabled: %v", err)
		return
	}
	s.cache = c
	s.logger.Info("Layout cache connected at %s", s.config.Cache.Addr)
}

// Repositories returns the database repositories, nil when no database is
// connected.
func (s *Service) Repositories() *repository.Repositories {
	return s.db
}

// Storage returns the object storage.
func (s *Service) Storage() storage.Storage {
	return s.storage
}

// LoadMetadata returns the type metadata. The database source ignores path;
// the file source falls back to the configured path, which may be a
// storage URI.
func (s *Service) LoadMetadata(ctx context.Context, path string) (metadata.Store, error) {
	if s.config.Metadata.Source == "database" {
		if s.db == nil {
			return nil, errors.FailedPreconditionf("metadata source is database but no database is connected")
		}
		return s.db.Metadata.LoadStore(ctx)
	}
	if path == "" {
		path = s.config.Metadata.Path
	}
	if path == "" {
		return nil, errors.InvalidArgumentf("no metadata file given")
	}
	local, cleanup, err := storage.Fetch(ctx, s.storage, path, "")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return metadata.LoadStore(local)
}

// ImportMetadata loads a snapshot file into the database.
func (s *Service) ImportMetadata(ctx context.Context, path string) (*metadata.Snapshot, error) {
	if s.db == nil {
		return nil, errors.FailedPreconditionf("no database is connected")
	}
	local, cleanup, err := storage.Fetch(ctx, s.storage, path, "")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	snap, err := metadata.LoadSnapshotFile(local)
	if err != nil {
		return nil, err
	}
	if err := s.db.Metadata.ImportSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// NewResolver creates a resolver over store configured by the resolver and
// synth sections.
func (s *Service) NewResolver(store metadata.Store) (*resolver.Resolver, error) {
	opts, err := resolver.ConfigOptions(s.config)
	if err != nil {
		return nil, err
	}
	opts = append(opts, resolver.WithLogger(s.logger))
	return resolver.New(store, opts...), nil
}

// AnalyzeRequest names the inputs of one analysis.
type AnalyzeRequest struct {
	ProfilePath  string
	MetadataPath string
	Persist      bool
}

// AnalyzeResult is the outcome of an analysis.
type AnalyzeResult struct {
	RunID     string
	Results   *histogram.Results
	Outputs   []string
	ReportURL string
	Stages    []utils.Stage
	Duration  time.Duration
}

// Analyze builds the histograms of a profile, writes the configured outputs
// and, when requested, persists the run.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.Analyze",
		attribute.String("profile", req.ProfilePath),
		attribute.Bool("persist", req.Persist),
	)
	defer span.End()

	res, err := s.analyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.Persist && s.db == nil {
		return nil, errors.FailedPreconditionf("persisting a run needs a database")
	}
	timer := utils.NewStageTimer("analysis")

	var store metadata.Store
	err := timer.Time("load metadata", func() error {
		var err error
		store, err = s.LoadMetadata(ctx, req.MetadataPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	r, err := s.NewResolver(store)
	if err != nil {
		return nil, err
	}

	var p *profile.Profile
	err = timer.Time("load profile", func() error {
		local, cleanup, err := storage.Fetch(ctx, s.storage, req.ProfilePath, "")
		if err != nil {
			return err
		}
		defer cleanup()
		p, err = profile.Load(local)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loaded %d records from %s", len(p.Records), req.ProfilePath)

	out := &AnalyzeResult{}
	if req.Persist {
		run := &repository.Run{
			ProfilePath:      req.ProfilePath,
			MetadataPath:     req.MetadataPath,
			Mode:             r.Builder().Mode().String(),
			GranularityBytes: p.Granularity(),
		}
		if err := s.db.Run.CreateRun(ctx, run); err != nil {
			return nil, err
		}
		out.RunID = run.RunID
		s.logger.Info("Created run %s", run.RunID)
	}

	opts := []histogram.Option{histogram.WithLogger(s.logger)}
	if s.cache != nil {
		opts = append(opts, histogram.WithCache(s.cache))
	}
	stop := timer.Start("build histograms")
	results, err := histogram.NewBuilder(r, s.config.Histogram, opts...).Build(ctx, p)
	stop()
	if err != nil {
		s.failRun(ctx, out.RunID, err)
		return nil, err
	}
	out.Results = results

	if path := s.config.Output.Path; path != "" {
		if err := timer.Time("write output", func() error { return s.writeOutput(results, path) }); err != nil {
			s.failRun(ctx, out.RunID, err)
			return nil, err
		}
		out.Outputs = append(out.Outputs, path)
	}

	if req.Persist {
		stop := timer.Start("persist")
		if err := s.db.Run.SaveResults(ctx, out.RunID, results.Store); err != nil {
			s.failRun(ctx, out.RunID, err)
			return nil, err
		}
		if len(out.Outputs) > 0 {
			url, err := storage.PublishReport(ctx, s.storage, out.RunID, out.Outputs[0])
			if err != nil {
				s.logger.Warn("Failed to publish report of run %s: %v", out.RunID, err)
			} else {
				out.ReportURL = url
			}
		}
		if err := s.db.Run.FinishRun(ctx, out.RunID, repository.RunStatusCompleted, &results.Stats, ""); err != nil {
			return nil, err
		}
		stop()
	}

	out.Stages = timer.Stages()
	out.Duration = timer.Total()
	timer.Log(s.logger.WithField("run_id", out.RunID))
	return out, nil
}

func (s *Service) failRun(ctx context.Context, runID string, cause error) {
	if runID == "" {
		return
	}
	// The analysis context may be the reason for the failure.
	ctx = context.WithoutCancel(ctx)
	if err := s.db.Run.FinishRun(ctx, runID, repository.RunStatusFailed, nil, cause.Error()); err != nil {
		s.logger.Error("Failed to mark run %s as failed: %v", runID, err)
	}
}

// writeOutput writes the store dump, or the flame graph dump when enabled,
// compressed according to the extension of path.
func (s *Service) writeOutput(results *histogram.Results, path string) error {
	var buf bytes.Buffer
	var err error
	if s.config.Output.Flamegraph {
		err = results.Store.DumpFlamegraph(&buf, s.config.Output.Limit)
	} else {
		err = results.Store.Dump(&buf, s.config.Output.Limit)
	}
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "render output", err)
	}
	if err := compression.WriteFile(path, buf.Bytes()); err != nil {
		return errors.Wrap(errors.CodeStorageError, "write "+path, err)
	}
	s.logger.Info("Wrote %d entries to %s", results.Store.Len(), path)
	return nil
}

// Close releases the database and cache connections.
func (s *Service) Close() error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close layout cache: %v", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			return err
		}
	}
	return nil
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return errors.Wrap(errors.CodeDatabaseError, "database health check failed", err)
		}
	}
	return nil
}
