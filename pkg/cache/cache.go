// Package cache is a read-through query cache with a fixed stale time and
// namespace-wide invalidation. Entries are addressed by a per-namespace
// generation counter, so invalidating a namespace is a single INCR and old
// entries age out through their TTL.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/redis"
)

const (
	NamespaceCatalog    = "catalog"
	NamespaceCategories = "categories"
)

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CacheGenerationKey(namespace string) string
	CacheKey(namespace string, generation int64, key string) string
}

// Cache is safe to use as a nil pointer; every call then goes straight to the loader.
type Cache struct {
	store     store
	staleTime time.Duration
	logg      *logger.Logger
}

func New(st store, staleTime time.Duration, logg *logger.Logger) *Cache {
	if st == nil {
		return nil
	}
	return &Cache{store: st, staleTime: staleTime, logg: logg}
}

// GetOrLoad returns the cached value for key or calls load and caches its result.
// Redis failures degrade to calling load.
func GetOrLoad[T any](ctx context.Context, c *Cache, namespace, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	gen, err := c.generation(ctx, namespace)
	if err != nil {
		c.warn(ctx, namespace, "cache generation lookup failed", err)
		return load(ctx)
	}
	entryKey := c.store.CacheKey(namespace, gen, key)

	raw, err := c.store.Get(ctx, entryKey)
	if err == nil {
		var cached T
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
	} else if !redis.IsMiss(err) {
		c.warn(ctx, namespace, "cache read failed", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		c.warn(ctx, namespace, "cache encode failed", err)
		return value, nil
	}
	if err := c.store.Set(ctx, entryKey, string(encoded), c.staleTime); err != nil {
		c.warn(ctx, namespace, "cache write failed", err)
	}
	return value, nil
}

// Invalidate drops every entry in namespace.
func (c *Cache) Invalidate(ctx context.Context, namespaces ...string) error {
	if c == nil {
		return nil
	}
	for _, namespace := range namespaces {
		if _, err := c.store.Incr(ctx, c.store.CacheGenerationKey(namespace)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) generation(ctx context.Context, namespace string) (int64, error) {
	raw, err := c.store.Get(ctx, c.store.CacheGenerationKey(namespace))
	if redis.IsMiss(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *Cache) warn(ctx context.Context, namespace, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"cache_namespace": namespace, "error": err.Error()})
	c.logg.Warn(ctx, msg)
}
