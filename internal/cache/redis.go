package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"safemap/internal/metrics"
)

// Redis shares heatmap payloads across replicas. Redis errors are logged
// and treated as misses so a cache outage never fails a request.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedis(url string, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: redis.NewClient(opt), ttl: ttl, prefix: "safemap:", log: log}, nil
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.HeatmapCache.WithLabelValues("redis", "miss").Inc()
		return nil, false
	case err != nil:
		metrics.HeatmapCache.WithLabelValues("redis", "error").Inc()
		c.log.Warn("heatmap cache get failed", "key", key, "err", err)
		return nil, false
	}
	metrics.HeatmapCache.WithLabelValues("redis", "hit").Inc()
	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, value []byte) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		metrics.HeatmapCache.WithLabelValues("redis", "error").Inc()
		c.log.Warn("heatmap cache set failed", "key", key, "err", err)
	}
}

func (c *Redis) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Redis) Close() error { return c.rdb.Close() }
