// Package memorycache is the simplest cache.Cache backend: an in-process
// map guarded by a mutex. Used as the top (fastest) tier in most
// multi-tier stacks, and in tests in place of a real remote backend.
package memorycache

import (
	"sync"

	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Cache is an in-memory cache.Cache backend.
type Cache struct {
	name        string
	detectBlank bool
	mu          sync.RWMutex
	data        map[string]*cache.Record
}

// New creates a named in-memory cache. detectBlank enables spec §4.F's
// opt-in blank-tile sentinel compression for this backend.
func New(name string, detectBlank bool) *Cache {
	return &Cache{name: name, detectBlank: detectBlank, data: make(map[string]*cache.Record)}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[t.Key()]
	return ok
}

func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	c.mu.RLock()
	r, ok := c.data[t.Key()]
	c.mu.RUnlock()
	if !ok {
		return cache.Miss
	}
	cache.ApplyRecord(t, r, c.detectBlank)
	return cache.Success
}

func (c *Cache) Set(ctx *mctx.Context, t *tile.Tile) error {
	r := cache.PrepareRecord(t, c.detectBlank)
	c.mu.Lock()
	c.data[t.Key()] = r
	c.mu.Unlock()
	return nil
}

func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	return cache.SetMulti(ctx, c, tiles)
}

func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	c.mu.Lock()
	delete(c.data, t.Key())
	c.mu.Unlock()
	return nil
}
