// Package filesystemcache stores tile records as files under a root
// directory, one file per cache key (canonicalized via lock.Canonicalize
// so path separators in a tile key never escape the root).
package filesystemcache

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/lock"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Cache is a filesystem-backed cache.Cache.
type Cache struct {
	name        string
	root        string
	detectBlank bool
}

// New creates a filesystem cache rooted at dir. detectBlank enables spec
// §4.F's opt-in blank-tile sentinel compression for this backend.
func New(name, dir string, detectBlank bool) *Cache {
	return &Cache{name: name, root: dir, detectBlank: detectBlank}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) path(t *tile.Tile) string {
	return filepath.Join(c.root, lock.Canonicalize(t.Key())+".tile")
}

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	_, err := os.Stat(c.path(t))
	return err == nil
}

func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	raw, err := ioutil.ReadFile(c.path(t))
	if err != nil {
		if os.IsNotExist(err) {
			return cache.Miss
		}
		ctx.SetError(mctx.CodeInternal, c.name, "read %s: %v", c.path(t), err)
		return cache.Failure
	}
	r, err := cache.Decode(raw)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, c.name, "decode %s: %v", c.path(t), err)
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
	p := c.path(t)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(p, enc, 0644)
}

func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	return cache.SetMulti(ctx, c, tiles)
}

func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	err := os.Remove(c.path(t))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
