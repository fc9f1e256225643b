package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache short-circuits repeated JWT-source extractions for the same
// bearer token, which otherwise gets re-decoded on every request from a
// hot caller. Cache-aside: extraction consults it first and writes back
// on a miss.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a cache with the given entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(tokenDigest string) string {
	return fmt.Sprintf("tenant:jwt:%s", tokenDigest)
}

// Get returns the cached TenantInfo for tokenDigest, or (nil, false) on
// miss. A digest, not the raw token, is used as the key so the cache
// never persists bearer material verbatim.
func (c *RedisCache) Get(ctx context.Context, tokenDigest string) (*TenantInfo, bool) {
	fields, err := c.client.HGetAll(ctx, cacheKey(tokenDigest)).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	return &TenantInfo{
		TenantID:   fields["tenant_id"],
		OnBehalfOf: fields["on_behalf_of"],
		Source:     SourceJWT,
		Context:    map[string]any{"cached": true},
	}, true
}

// Set stores info under tokenDigest with the cache's configured TTL.
func (c *RedisCache) Set(ctx context.Context, tokenDigest string, info *TenantInfo) error {
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, cacheKey(tokenDigest), "tenant_id", info.TenantID, "on_behalf_of", info.OnBehalfOf)
	pipe.Expire(ctx, cacheKey(tokenDigest), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
