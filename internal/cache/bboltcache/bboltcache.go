// Package bboltcache stores tile records in a single coreos/bbolt
// key-value file, one bucket per cache instance.
package bboltcache

import (
	"time"

	"github.com/coreos/bbolt"
	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

var bucketName = []byte("tiles")

// Cache is a bbolt-backed cache.Cache.
type Cache struct {
	name        string
	db          *bbolt.DB
	detectBlank bool
}

// Open opens (creating if needed) a bbolt database file at path.
// detectBlank enables spec §4.F's opt-in blank-tile sentinel compression
// for this backend.
func Open(name, path string, detectBlank bool) (*Cache, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{name: name, db: db, detectBlank: detectBlank}, nil
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	found := false
	c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(t.Key()))
		found = v != nil
		return nil
	})
	return found
}

func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	var raw []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(t.Key()))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		ctx.SetError(mctx.CodeInternal, c.name, "view: %v", err)
		return cache.Failure
	}
	if raw == nil {
		return cache.Miss
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
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(t.Key()), enc)
	})
}

func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, t := range tiles {
			r := cache.PrepareRecord(t, c.detectBlank)
			enc, err := cache.Encode(r)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(t.Key()), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(t.Key()))
	})
}

// Close releases the underlying bbolt file handle.
func (c *Cache) Close() error { return c.db.Close() }
