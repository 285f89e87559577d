/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package multitier implements spec §4.E: an ordered stack of cache.Cache
// backends with read-promotion and a single designated writer tier.
package multitier

import (
	"time"

	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/metrics"
	"github.com/trickster-io/mapcache/internal/tile"
)

// promotionLogWindow is the OQ2 rate-limit window for promotion-failure
// logging: loud enough to notice a persistently broken upper tier, quiet
// enough not to spam on every request.
const promotionLogWindow = 60 * time.Second

// Tier is one child of a multi-tier cache plus its writer designation.
type Tier struct {
	Cache cache.Cache
	Write bool
}

// Cache composes Tiers into a single cache.Cache, per spec §4.E.
type Cache struct {
	name       string
	tiers      []Tier
	writeIndex int
}

// New builds a multi-tier cache. tiers must be non-empty (spec: empty
// child list is a config error, surfaced by the config loader, not here).
// If no tier has Write set, the last tier becomes the writer. Tier.Write
// does not distinguish an explicit false from an unset value, so a last
// tier declared write="false" is still chosen.
func New(name string, tiers []Tier) *Cache {
	writeIndex := -1
	for i, t := range tiers {
		if t.Write {
			writeIndex = i
			break
		}
	}
	if writeIndex == -1 {
		writeIndex = len(tiers) - 1
	}
	return &Cache{name: name, tiers: tiers, writeIndex: writeIndex}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Exists(ctx *mctx.Context, t *tile.Tile) bool {
	for _, tier := range c.tiers {
		if tier.Cache.Exists(ctx, t) {
			return true
		}
	}
	return false
}

// Get reads tier 0..N-1 in order. On the first Success at tier k>0, it
// promotes the bytes into tiers 0..k-1 in reverse order (nearest-to-client
// last), swallowing and rate-limit-logging promotion failures.
func (c *Cache) Get(ctx *mctx.Context, t *tile.Tile) cache.Result {
	for k, tier := range c.tiers {
		res := tier.Cache.Get(ctx, t)
		switch res {
		case cache.Success:
			metrics.CacheRequests.WithLabelValues(tier.Cache.Name(), "get", "hit").Inc()
			c.promote(ctx, t, k)
			return cache.Success
		case cache.Failure:
			metrics.CacheRequests.WithLabelValues(tier.Cache.Name(), "get", "failure").Inc()
			return cache.Failure
		default:
			metrics.CacheRequests.WithLabelValues(tier.Cache.Name(), "get", "miss").Inc()
		}
	}
	return cache.Miss
}

// promote copies a hit found at tier k into every tier above it (0..k-1),
// iterating from k-1 down to 0 so the nearest-to-client tier is populated
// last, per spec §4.E.
func (c *Cache) promote(ctx *mctx.Context, t *tile.Tile, k int) {
	for i := k - 1; i >= 0; i-- {
		saved := ctx.PushErrors()
		err := c.tiers[i].Cache.Set(ctx, t)
		if err != nil || ctx.HasError() {
			log.WarnOnceEvery(
				"promote:"+c.tiers[i].Cache.Name()+":"+t.Key(),
				"cache tier promotion failed",
				log.Pairs{"tier": c.tiers[i].Cache.Name(), "key": t.Key(), "err": err},
				promotionLogWindow,
			)
		}
		ctx.PopErrors(saved)
	}
}

// Set delegates to the single configured writer tier.
func (c *Cache) Set(ctx *mctx.Context, t *tile.Tile) error {
	return c.tiers[c.writeIndex].Cache.Set(ctx, t)
}

// MultiSet delegates to the writer tier.
func (c *Cache) MultiSet(ctx *mctx.Context, tiles []*tile.Tile) error {
	return c.tiers[c.writeIndex].Cache.MultiSet(ctx, tiles)
}

// Delete broadcasts to every tier; per-tier errors are cleared.
func (c *Cache) Delete(ctx *mctx.Context, t *tile.Tile) error {
	for _, tier := range c.tiers {
		saved := ctx.PushErrors()
		_ = tier.Cache.Delete(ctx, t)
		ctx.PopErrors(saved)
	}
	return nil
}
