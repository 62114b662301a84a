// Package histogram turns an allocation profile into per-callstack type
// trees carrying the recorded access counts.
package histogram

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/profile"
	"github.com/perf-analysis/fieldaccess/internal/resolver"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/filter"
	"github.com/perf-analysis/fieldaccess/pkg/parallel"
	"github.com/perf-analysis/fieldaccess/pkg/telemetry"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// TreeCache stores resolved trees without counts. Implementations must be
// safe for concurrent use.
type TreeCache interface {
	Get(ctx context.Context, key string) (*typetree.TypeTree, bool, error)
	Put(ctx context.Context, key string, tree *typetree.TypeTree) error
}

// Unresolved is a callstack no type could be resolved for.
type Unresolved struct {
	CallStack metadata.CallStack
	Err       error
}

// Results is the outcome of a build.
type Results struct {
	Store      *Store
	Stats      statistics.Statistics
	Unresolved []Unresolved
}

// DumpUnresolved writes every unresolved callstack as an entry.
func (r *Results) DumpUnresolved(w io.Writer) error {
	for _, u := range r.Unresolved {
		if err := DumpCallStack(w, u.CallStack, 0, true); err != nil {
			return err
		}
	}
	return nil
}

// Builder resolves and aggregates allocation records.
type Builder struct {
	resolver    *resolver.Resolver
	cfg         config.HistogramConfig
	typeFilter  *filter.TypePrefixFilter
	stackFilter *filter.CallstackFilter
	cache       TreeCache
	logger      utils.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache short-circuits repeated resolutions through cache.
func WithCache(cache TreeCache) Option {
	return func(b *Builder) { b.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder creates a builder resolving through r.
func NewBuilder(r *resolver.Resolver, cfg config.HistogramConfig, opts ...Option) *Builder {
	if cfg.GranularityBytes <= 0 {
		cfg.GranularityBytes = typetree.DefaultGranularityBytes
	}
	if cfg.Workers < 1 {
		cfg.Workers = parallel.DefaultPoolConfig().MaxWorkers
	}
	b := &Builder{
		resolver:    r,
		cfg:         cfg,
		typeFilter:  filter.NewTypePrefixFilter(cfg.TypePrefixFilter),
		stackFilter: filter.NewCallstackFilter(cfg.CallstackFilter),
		logger:      utils.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// job is one distinct (callstack, request size) pair to resolve.
type job struct {
	key       string
	cacheKey  string
	callstack metadata.CallStack
	request   int64
}

type resolution struct {
	tree *typetree.TypeTree
	err  error
}

// item is one record waiting for aggregation.
type item struct {
	index    int
	record   *profile.Record
	stackKey string
	jobKey   string
}

// Build runs the pipeline over every record of p.
func (b *Builder) Build(ctx context.Context, p *profile.Profile) (*Results, error) {
	ctx, span := telemetry.StartSpan(ctx, "histogram.Build",
		attribute.Int("records", len(p.Records)),
		attribute.Int("workers", b.cfg.Workers))
	defer span.End()

	results, err := b.build(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("callstacks", results.Store.Len()),
		attribute.Int64("found", int64(results.Stats.TotalFoundType)))
	return results, nil
}

func (b *Builder) build(ctx context.Context, p *profile.Profile) (*Results, error) {
	granularity := b.cfg.GranularityBytes
	if p.GranularityBytes > 0 {
		granularity = p.GranularityBytes
	}
	if granularity != typetree.DefaultGranularityBytes {
		return nil, errors.Unimplementedf("access granularity must be %d bytes, got %d",
			typetree.DefaultGranularityBytes, granularity)
	}

	cacheNS, err := b.cacheNamespace()
	if err != nil {
		return nil, err
	}

	var items []item
	var jobs []job
	seen := make(map[string]struct{})
	for i := range p.Records {
		rec := &p.Records[i]
		if err := rec.Validate(); err != nil {
			return nil, errors.Wrap(errors.CodeInvalidArgument, fmt.Sprintf("record %d", i), err)
		}
		if !b.stackFilter.Allow(rec.CallStack.FunctionNames()) {
			continue
		}
		request, err := rec.Request(granularity)
		if err != nil {
			return nil, err
		}
		stackKey := rec.CallStack.Key()
		jobKey := fmt.Sprintf("%s|%d|%s", b.resolver.Builder().Mode(), request, stackKey)
		items = append(items, item{index: i, record: rec, stackKey: stackKey, jobKey: jobKey})
		if _, ok := seen[jobKey]; !ok {
			seen[jobKey] = struct{}{}
			j := job{key: jobKey, callstack: rec.CallStack, request: request}
			if cacheNS != "" {
				j.cacheKey = cacheNS + "|" + jobKey
			}
			jobs = append(jobs, j)
		}
	}
	b.logger.Info("Resolving %d distinct callstacks for %d records", len(jobs), len(items))

	resolved, err := b.resolveAll(ctx, jobs)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	var (
		mu         sync.Mutex
		stats      statistics.Statistics
		unresolved []item
	)
	shards := parallel.ShardByKey(items, b.cfg.Workers, func(it item) uint64 { return hashKey(it.stackKey) })
	err = parallel.ForEachShard(ctx, shards, func(ctx context.Context, shard []item) error {
		var local statistics.Statistics
		var missed []item
		for _, it := range shard {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := resolved[it.jobKey]
			if res.err != nil {
				missed = append(missed, it)
			}
			if err := b.aggregate(it, res, granularity, store, &local); err != nil {
				return err
			}
		}
		mu.Lock()
		stats.Merge(&local)
		unresolved = append(unresolved, missed...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats.DuplicateCallstacks = store.Duplicates()

	out := &Results{Store: store, Stats: stats}
	if b.cfg.DumpUnresolvedCallstacks {
		sort.Slice(unresolved, func(i, j int) bool { return unresolved[i].index < unresolved[j].index })
		for _, it := range unresolved {
			out.Unresolved = append(out.Unresolved, Unresolved{CallStack: it.record.CallStack, Err: resolved[it.jobKey].err})
		}
	}
	return out, nil
}

// resolveAll resolves every job on the worker pool.
func (b *Builder) resolveAll(ctx context.Context, jobs []job) (map[string]resolution, error) {
	pool := parallel.NewWorkerPool[job, *typetree.TypeTree](parallel.DefaultPoolConfig().WithWorkers(b.cfg.Workers))
	results := pool.ExecuteFunc(ctx, jobs, b.resolve)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]resolution, len(results))
	for _, r := range results {
		out[r.Input.key] = resolution{tree: r.Result, err: r.Error}
	}
	return out, nil
}

// cacheNamespace returns the prefix scoping cache keys to the resolver's
// metadata and settings, or "" when the cache cannot be used.
func (b *Builder) cacheNamespace() (string, error) {
	if b.cache == nil {
		return "", nil
	}
	ns, ok, err := b.resolver.CacheNamespace()
	if err != nil {
		return "", err
	}
	if !ok {
		b.logger.Warn("Layout cache skipped: metadata store cannot be fingerprinted")
		return "", nil
	}
	return ns, nil
}

func (b *Builder) resolve(ctx context.Context, j job) (*typetree.TypeTree, error) {
	if j.cacheKey != "" {
		tree, ok, err := b.cache.Get(ctx, j.cacheKey)
		if err != nil {
			b.logger.Warn("Layout cache lookup failed: %v", err)
		} else if ok {
			return tree, nil
		}
	}
	tree, err := b.resolver.ResolveCallstack(ctx, j.callstack, j.request)
	if err != nil {
		return nil, err
	}
	if j.cacheKey != "" {
		if err := b.cache.Put(ctx, j.cacheKey, tree); err != nil {
			b.logger.Warn("Layout cache store failed: %v", err)
		}
	}
	return tree, nil
}

// aggregate records one allocation into store and local.
func (b *Builder) aggregate(it item, res resolution, granularity int64, store *Store, local *statistics.Statistics) error {
	verbose := b.cfg.VerifyVerbose
	cs := it.record.CallStack
	local.TotalAllocations++

	if res.err != nil {
		if verbose {
			b.logger.Warn("Failed to resolve type from callstack: %v", res.err)
			b.logTree(cs, nil)
		}
		return nil
	}
	local.TotalFoundType++

	if !b.typeFilter.Allow(res.tree.Name()) {
		return nil
	}
	local.TotalAfterFiltering++

	if res.tree.IsRecordType() {
		local.TotalRecords++
	}
	if b.cfg.OnlyRecords && !res.tree.IsRecordType() {
		return nil
	}

	tree := res.tree.Clone()
	logTree := false
	if err := tree.RecordAccessHistogram(it.record.Histogram, granularity, typetree.AccessLoadStore); err != nil {
		logTree = true
		if verbose {
			b.logger.Warn("Collapsing histogram does not precisely align with type size, counters may be distorted: %v", err)
		}
	}
	if len(it.record.LLCMisses) > 0 {
		if err := tree.RecordAccessHistogram(it.record.LLCMisses, granularity, typetree.AccessLLCMiss); err != nil {
			logTree = true
		}
	}

	if !tree.Verify(verbose) {
		b.logTree(cs, tree)
	}
	local.TotalVerified++

	accesses := tree.Root().Counters.Access
	local.TotalAccesses += accesses
	if tree.FromContainer() {
		local.ContainerAllocs++
		local.AccessesOnContainers += accesses
	} else {
		local.HeapAllocs++
		local.AccessesOnHeapAllocs += accesses
	}
	if tree.IsRecordType() {
		local.AccessesOnRecords += accesses
	}

	if logTree {
		b.logTree(cs, tree)
	}
	return store.Insert(cs, tree)
}

// logTree logs the tree and its callstack when verbose verification is on.
func (b *Builder) logTree(cs metadata.CallStack, tree *typetree.TypeTree) {
	if !b.cfg.VerifyVerbose {
		return
	}
	var sb strings.Builder
	if tree != nil {
		_ = tree.Dump(&sb, 0)
		sb.WriteString("\n")
	} else {
		sb.WriteString("- \n")
	}
	_ = DumpCallStack(&sb, cs, 0, false)
	b.logger.Warn("%s", sb.String())
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}
