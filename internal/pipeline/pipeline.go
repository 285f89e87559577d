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

// Package pipeline implements the tile fetch-or-render protocol of
// spec §4.F: get, miss, lock_or_wait, re-get, render, set, unlock. An
// in-process golang.org/x/sync/singleflight layer collapses concurrent
// callers for the same resource before the cross-process locker is even
// consulted, the same pattern other_examples/letsencrypt-ctile uses
// around its S3-backed tile fetch.
package pipeline

import (
	"net/url"
	"time"

	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/lock"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/metrics"
	"github.com/trickster-io/mapcache/internal/tile"
	"golang.org/x/sync/singleflight"
)

// Renderer produces the full metatile containing req and splits it into
// child tiles. Implementations live outside this package's scope (spec
// §1 names tile rendering as an external collaborator).
type Renderer interface {
	RenderMetatile(ctx *mctx.Context, ts *tile.Tileset, req *tile.Tile) ([]*tile.Tile, error)
}

// Compositor assembles a GET_MAP response by pulling tiles from cache and
// compositing them into a single image, per spec §4.G's "(a) pulling
// tiles from cache and compositing" branch. Implementations live outside
// this package's scope: both the BBOX-to-tile-range resolution (grid
// geometry math) and the image composition itself (tile-image
// encoders/decoders) are named external collaborators per spec §1.
type Compositor interface {
	CompositeMap(ctx *mctx.Context, ts *tile.Tileset, query url.Values) (data []byte, mime string, err error)
}

// Pipeline ties a cache, locker, and renderer together for one tileset.
type Pipeline struct {
	Cache         cache.Cache
	Locker        lock.Locker
	Renderer      Renderer
	Compositor    Compositor
	RetryInterval time.Duration
	Timeout       time.Duration

	group singleflight.Group
}

// Fetch implements spec §4.F: return the requested tile's bytes, rendering
// on miss under the resource lock. The returned tile is req itself,
// mutated in place with EncodedData/MIME/Mtime/Nodata.
func (p *Pipeline) Fetch(ctx *mctx.Context, ts *tile.Tileset, req *tile.Tile) (*tile.Tile, error) {
	if res := p.Cache.Get(ctx, req); res == cache.Success {
		return req, nil
	} else if res == cache.Failure {
		return nil, errFrom(ctx)
	}

	resource := ts.Resource(req)

	// Collapse concurrent in-process callers for the same metatile onto
	// one render attempt before touching the cross-process locker.
	v, err, _ := p.group.Do(resource, func() (interface{}, error) {
		return p.renderUnderLock(ctx, ts, req, resource)
	})
	if err != nil {
		return nil, err
	}
	tiles := v.([]*tile.Tile)
	for _, t := range tiles {
		if sameIdentity(t, req) {
			*req = *t
			return req, nil
		}
	}
	// The metatile render didn't cover the requested tile's identity;
	// re-read the cache as a last resort.
	if res := p.Cache.Get(ctx, req); res == cache.Success {
		return req, nil
	}
	return nil, errFrom(ctx)
}

func (p *Pipeline) renderUnderLock(ctx *mctx.Context, ts *tile.Tileset, req *tile.Tile, resource string) (interface{}, error) {
	owned, tok := lock.LockOrWait(ctx, p.Locker, resource, p.RetryInterval, p.Timeout)
	if !owned {
		// Someone else rendered (or we gave up waiting): re-read and
		// permit exactly one re-render attempt if it's still a miss.
		if res := p.Cache.Get(ctx, req); res == cache.Success {
			return []*tile.Tile{req}, nil
		}
		return p.renderAndStore(ctx, ts, req)
	}
	defer p.Locker.Release(ctx, tok)
	return p.renderAndStore(ctx, ts, req)
}

func (p *Pipeline) renderAndStore(ctx *mctx.Context, ts *tile.Tileset, req *tile.Tile) ([]*tile.Tile, error) {
	metrics.RendersTotal.WithLabelValues(ts.Name).Inc()
	tiles, err := p.Renderer.RenderMetatile(ctx, ts, req)
	if err != nil {
		return nil, err
	}
	if err := p.Cache.MultiSet(ctx, tiles); err != nil {
		return nil, err
	}
	return tiles, nil
}

func sameIdentity(a, b *tile.Tile) bool {
	return a.Tileset == b.Tileset && a.Grid == b.Grid && a.X == b.X && a.Y == b.Y && a.Z == b.Z
}

func errFrom(ctx *mctx.Context) error {
	code, msg, source := ctx.Error()
	return &pipelineError{code: code, msg: msg, source: source}
}

type pipelineError struct {
	code   int
	msg    string
	source string
}

func (e *pipelineError) Error() string { return e.source + ": " + e.msg }

// Code returns the carried HTTP-style status code.
func (e *pipelineError) Code() int { return e.code }
