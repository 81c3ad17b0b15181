// Package cache invalidates read-path price cache entries after a store run
// commits. The cache is advisory: invalidation failures are logged and never
// fail a run.
package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const scanBatch = 100

// Redis is the subset of go-redis the invalidator needs. Satisfied by
// goredis.UniversalClient.
type Redis interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies connectivity.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "cache: ping redis")
	}
	return client, nil
}

// Invalidator deletes price cache entries by store.
type Invalidator struct {
	redis Redis
}

// NewInvalidator creates an invalidator over the given Redis client.
func NewInvalidator(redis Redis) *Invalidator {
	return &Invalidator{redis: redis}
}

// KeyPattern returns the cache key pattern covering all price lookups that
// include the store. The read path keys product-set lookups as
// prices:<hash>:<store_id>.
func KeyPattern(storeID int64) string {
	return fmt.Sprintf("prices:*:%d", storeID)
}

// InvalidateStore scans for every cache key associated with the store's
// prices and deletes them in batches. Returns the number of keys deleted.
func (i *Invalidator) InvalidateStore(ctx context.Context, storeID int64) (int64, error) {
	pattern := KeyPattern(storeID)

	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := i.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, eris.Wrapf(err, "cache: scan %s", pattern)
		}
		if len(keys) > 0 {
			n, err := i.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, eris.Wrapf(err, "cache: delete %d keys", len(keys))
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	zap.L().Debug("cache invalidated",
		zap.Int64("store_id", storeID),
		zap.Int64("keys_deleted", deleted),
	)
	return deleted, nil
}
