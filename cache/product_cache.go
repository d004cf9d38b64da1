package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProductListCachePrefix = "products:v:"
	CacheVersionKey        = "products:version"

	DefaultCacheTTL = 5 * time.Minute
)

// ProductCache caches the serialized product listing. Writes to products
// bump a version counter, which orphans every listing cached under the old
// version until its TTL runs out.
type ProductCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewProductCache returns nil when client is nil; a nil *ProductCache
// misses on every read and ignores writes.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProductCache{redis: client, ttl: ttl}
}

// GetListing returns the cached listing for the current version, and that
// version. A listing read from the database after this call must be stored
// under the returned version so a concurrent Invalidate orphans it. The
// version is 0 when it could not be read.
func (pc *ProductCache) GetListing(ctx context.Context) ([]byte, int64, bool) {
	if pc == nil {
		return nil, 0, false
	}

	version, err := pc.getCacheVersion(ctx)
	if err != nil {
		zap.L().Warn("Failed to read product cache version", zap.Error(err))
		return nil, 0, false
	}

	data, err := pc.redis.Get(ctx, listKey(version)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("Failed to read cached product list", zap.Error(err))
		}
		return nil, version, false
	}
	return data, version, true
}

// SetListing stores body under version. Version 0 is ignored.
func (pc *ProductCache) SetListing(ctx context.Context, version int64, body []byte) error {
	if pc == nil || version <= 0 {
		return nil
	}

	if err := pc.redis.Set(ctx, listKey(version), body, pc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache product list: %w", err)
	}
	return nil
}

// SetListingAsync caches body under version in the background.
func (pc *ProductCache) SetListingAsync(version int64, body []byte) {
	if pc == nil || version <= 0 {
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := pc.SetListing(bgCtx, version, body); err != nil {
			zap.L().Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

// Invalidate invalidates all product listings by bumping the version
func (pc *ProductCache) Invalidate(ctx context.Context) error {
	if pc == nil {
		return nil
	}

	newVersion, err := pc.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	zap.L().Debug("Product cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

// getCacheVersion reads the current version, initialising it on first use.
func (pc *ProductCache) getCacheVersion(ctx context.Context) (int64, error) {
	ver, err := pc.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil && ver > 0 {
		return ver, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to get cache version: %w", err)
	}

	// SetNX so a concurrent Invalidate is never overwritten
	if err := pc.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
		return 0, fmt.Errorf("failed to initialise cache version: %w", err)
	}
	ver, err = pc.redis.Get(ctx, CacheVersionKey).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to get cache version: %w", err)
	}
	return ver, nil
}

func listKey(version int64) string {
	return fmt.Sprintf("%s%d:all", ProductListCachePrefix, version)
}
