package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ShardByKey partitions items into at most shards groups such that items with
// equal keys land in the same group, preserving the relative order of items.
func ShardByKey[T any](items []T, shards int, key func(T) uint64) [][]T {
	if shards <= 0 {
		shards = 1
	}
	groups := make([][]T, shards)
	for _, item := range items {
		i := key(item) % uint64(shards)
		groups[i] = append(groups[i], item)
	}
	return groups
}

// ForEachShard runs fn once per non-empty shard, each in its own goroutine.
// The first error cancels the shared context and is returned.
func ForEachShard[T any](ctx context.Context, shards [][]T, fn func(ctx context.Context, shard []T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			return fn(gctx, shard)
		})
	}
	return g.Wait()
}
