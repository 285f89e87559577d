// Package cache defines the uniform cache-backend contract of spec §4.D
// (get/set/multi_set/exists/delete, Miss distinguished from Failure) and
// the multi-tier composition of spec §4.E.
package cache

import (
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Result is the outcome of a Get.
type Result int

const (
	Success Result = iota
	Miss
	Failure
)

// Cache is the interface every backend (memory, filesystem, bbolt,
// badger, redis, s3, multi-tier) implements, per spec §4.D.
type Cache interface {
	// Name identifies the backend instance, used in logging/metrics.
	Name() string
	// Exists reports whether t's identity is present.
	Exists(ctx *mctx.Context, t *tile.Tile) bool
	// Get populates t.EncodedData/MIME/Mtime/Nodata on Success.
	Get(ctx *mctx.Context, t *tile.Tile) Result
	// Set stores t.EncodedData (and related payload fields).
	Set(ctx *mctx.Context, t *tile.Tile) error
	// MultiSet stores several tiles; backends without a bulk path may
	// fall back to iterated Set via SetMulti below.
	MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error
	// Delete removes t's identity.
	Delete(ctx *mctx.Context, t *tile.Tile) error
}

// SetMulti is the default MultiSet implementation (iterate Set), used by
// backends that don't have a native bulk-write path, per spec §4.D.
func SetMulti(ctx *mctx.Context, c Cache, tiles []*tile.Tile) error {
	for _, t := range tiles {
		if err := c.Set(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// keyFor is the canonical cache key used by every backend.
func keyFor(t *tile.Tile) string {
	return t.Key()
}
