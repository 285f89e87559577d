// Package badgercache stores tile records in a dgraph-io/badger
// embedded key-value store.
package badgercache

import (
	"github.com/dgraph-io/badger"
	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Cache is a badger-backed cache.Cache.
type Cache struct {
	name        string
	db          *badger.DB
	detectBlank bool
}

// Open opens (creating if needed) a badger database directory at path.
// detectBlank enables spec §4.F's opt-in blank-tile sentinel compression
// for this backend.
func Open(name, path string, detectBlank bool) (*Cache, error) {
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{name: name, db: db, detectBlank: detectBlank}, nil
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	found := false
	c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(t.Key()))
		found = err == nil
		return nil
	})
	return found
}

func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(t.Key()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte(nil), v...)
			return nil
		})
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
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(t.Key()), enc)
	})
}

func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	return c.db.Update(func(txn *badger.Txn) error {
		for _, t := range tiles {
			r := cache.PrepareRecord(t, c.detectBlank)
			enc, err := cache.Encode(r)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(t.Key()), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(t.Key()))
	})
}

// Close releases the underlying badger handles.
func (c *Cache) Close() error { return c.db.Close() }
