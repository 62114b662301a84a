// Package cache keeps resolved type trees in Redis so repeated analyses of
// the same binary skip type resolution.
package cache

import (
	"bytes"
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// DefaultKeyPrefix namespaces the cache keys.
const DefaultKeyPrefix = "fieldaccess:layout:"

// entry is the cached form of a tree. Counters are never cached.
type entry struct {
	Name          string              `json:"name"`
	FromContainer bool                `json:"from_container"`
	ContainerName string              `json:"container_name,omitempty"`
	Unions        []int               `json:"unions,omitempty"`
	Layout        layout.ObjectLayout `json:"layout"`
}

// RedisLayoutCache implements histogram.TreeCache on Redis.
type RedisLayoutCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLayoutCache connects to the configured server and pings it.
func NewRedisLayoutCache(ctx context.Context, cfg config.CacheConfig) (*RedisLayoutCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.CodeCacheError, "connect to redis "+cfg.Addr, err)
	}

	return NewRedisLayoutCacheWithClient(client, cfg.KeyPrefix, time.Duration(cfg.TTLSeconds)*time.Second), nil
}

// NewRedisLayoutCacheWithClient wraps an existing client. A zero ttl keeps
// entries forever.
func NewRedisLayoutCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisLayoutCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLayoutCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the tree cached under key.
func (c *RedisLayoutCache) Get(ctx context.Context, key string) (*typetree.TypeTree, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.CodeCacheError, "get "+key, err)
	}

	var e entry
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&e); err != nil {
		return nil, false, errors.Wrap(errors.CodeCacheError, "decode "+key, err)
	}
	return e.tree(), true, nil
}

// Put caches tree under key.
func (c *RedisLayoutCache) Put(ctx context.Context, key string, tree *typetree.TypeTree) error {
	if tree.Empty() {
		return errors.InvalidArgumentf("cannot cache an empty tree")
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(entryOf(tree)); err != nil {
		return errors.Wrap(errors.CodeCacheError, "encode "+key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, buf.Bytes(), c.ttl).Err(); err != nil {
		return errors.Wrap(errors.CodeCacheError, "set "+key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *RedisLayoutCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(errors.CodeCacheError, "clear", err)
		}
	}
	return iter.Err()
}

// Close closes the client.
func (c *RedisLayoutCache) Close() error {
	return c.client.Close()
}

// entryOf records union nodes by their preorder index; the layout format
// has no union flag.
func entryOf(tree *typetree.TypeTree) *entry {
	e := &entry{
		Name:          tree.Name(),
		FromContainer: tree.FromContainer(),
		ContainerName: tree.ContainerName(),
		Layout:        tree.ToLayout(),
	}
	i := 0
	tree.Walk(func(_ int, n *typetree.Node) {
		if n.Union {
			e.Unions = append(e.Unions, i)
		}
		i++
	})
	return e
}

func (e *entry) tree() *typetree.TypeTree {
	restored := typetree.FromLayout(&e.Layout, e.Name, e.ContainerName)
	tree := typetree.New(restored.Root(), e.Name, e.FromContainer, e.ContainerName)
	if len(e.Unions) == 0 {
		return tree
	}
	unions := make(map[int]bool, len(e.Unions))
	for _, u := range e.Unions {
		unions[u] = true
	}
	i := 0
	tree.Walk(func(_ int, n *typetree.Node) {
		n.Union = unions[i]
		i++
	})
	return tree
}
