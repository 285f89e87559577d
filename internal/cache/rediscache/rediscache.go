// Package rediscache stores tile records in Redis via go-redis/redis v6,
// the same client trickster's internal/cache/redis uses.
package rediscache

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Cache is a redis-backed cache.Cache.
type Cache struct {
	name        string
	client      *redis.Client
	ttl         time.Duration
	detectBlank bool
}

// New wraps an existing redis client. ttl of zero means no expiration.
// detectBlank enables spec §4.F's opt-in blank-tile sentinel compression
// for this backend.
func New(name string, client *redis.Client, ttl time.Duration, detectBlank bool) *Cache {
	return &Cache{name: name, client: client, ttl: ttl, detectBlank: detectBlank}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	n, err := c.client.Exists(t.Key()).Result()
	return err == nil && n > 0
}

func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	raw, err := c.client.Get(t.Key()).Bytes()
	if err == redis.Nil {
		return cache.Miss
	}
	if err != nil {
		ctx.SetError(mctx.CodeInternal, c.name, "get: %v", err)
		return cache.Failure
	}
	r, err := cache.Decode(raw)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, c.name, "decode: %v", err)
		return cache.Failure
	}
	cache.ApplyRecord(t, r, c.detectBlank)
	return cache.Success
}

func (c *Cache) Set(ctx *mctx.Context, t *tile.Tile) error {
	r := cache.PrepareRecord(t, c.detectBlank)
	enc, err := cache.Encode(r)
	if err != nil {
		return err
	}
	return c.client.Set(t.Key(), enc, c.ttl).Err()
}

func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	pipe := c.client.Pipeline()
	for _, t := range tiles {
		r := cache.PrepareRecord(t, c.detectBlank)
		enc, err := cache.Encode(r)
		if err != nil {
			return err
		}
		pipe.Set(t.Key(), enc, c.ttl)
	}
	_, err := pipe.Exec()
	return err
}

func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	return c.client.Del(t.Key()).Err()
}
