package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
)

// RedisCache stores JSON values in Redis. All failures degrade to a miss.
type RedisCache struct {
	rc     *redis.Client
	prefix string
}

// NewRedisCache wraps rc; keys are namespaced by prefix.
func NewRedisCache(rc *redis.Client, prefix string) *RedisCache {
	return &RedisCache{rc: rc, prefix: prefix}
}

// Get decodes the cached value for key into dst.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// Set stores v as JSON. A non-positive ttl falls back to one hour.
func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil || c.rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// Delete removes keys.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.rc == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Del(ctx, full...).Err(); err != nil {
		Sugar.Warnf("cache delete failed keys=%v err=%v", keys, err)
	}
}

// RedisPublisher fans notification payloads out over Redis pub/sub.
type RedisPublisher struct {
	rc *redis.Client
}

// NewRedisPublisher wraps rc.
func NewRedisPublisher(rc *redis.Client) *RedisPublisher {
	return &RedisPublisher{rc: rc}
}

// Publish sends payload on channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if p == nil || p.rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	return p.rc.Publish(ctx, channel, payload).Err()
}
