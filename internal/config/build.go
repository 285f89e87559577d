package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis"
	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/cache/badgercache"
	"github.com/trickster-io/mapcache/internal/cache/bboltcache"
	"github.com/trickster-io/mapcache/internal/cache/filesystemcache"
	"github.com/trickster-io/mapcache/internal/cache/memorycache"
	"github.com/trickster-io/mapcache/internal/cache/multitier"
	"github.com/trickster-io/mapcache/internal/cache/rediscache"
	"github.com/trickster-io/mapcache/internal/cache/s3cache"
	"github.com/trickster-io/mapcache/internal/lock"
	"github.com/trickster-io/mapcache/internal/tile"
)

// BuildCaches instantiates every declared <cache> in order, resolving
// multitier members by name against already-built caches (spec §4.E rule
// i: children must be declared before the multi-tier declaration).
func BuildCaches(ac *AliasConfig) (map[string]cache.Cache, error) {
	built := make(map[string]cache.Cache, len(ac.Caches))
	for _, c := range ac.Caches {
		inst, err := buildOne(c, built)
		if err != nil {
			return nil, fmt.Errorf("config: build cache %q: %w", c.Name, err)
		}
		built[c.Name] = inst
	}
	return built, nil
}

func buildOne(c CacheXML, built map[string]cache.Cache) (cache.Cache, error) {
	switch c.Type {
	case "memory":
		return memorycache.New(c.Name, c.DetectBlank), nil
	case "filesystem", "disk":
		return filesystemcache.New(c.Name, c.Path, c.DetectBlank), nil
	case "bbolt":
		return bboltcache.Open(c.Name, c.Path, c.DetectBlank)
	case "badger":
		return badgercache.Open(c.Name, c.Path, c.DetectBlank)
	case "redis":
		addr := c.Host
		if addr == "" && len(c.Server) > 0 {
			addr = c.Server[0]
		}
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		return rediscache.New(c.Name, client, 0, c.DetectBlank), nil
	case "s3":
		return s3cache.New(context.Background(), c.Name, c.Bucket, c.Key, c.DetectBlank)
	case "multitier":
		tiers := make([]multitier.Tier, 0, len(c.Members))
		for _, m := range c.Members {
			child, ok := built[m.Name]
			if !ok {
				return nil, fmt.Errorf("undeclared member %q", m.Name)
			}
			tiers = append(tiers, multitier.Tier{Cache: child, Write: m.Write})
		}
		return multitier.New(c.Name, tiers), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", c.Type)
	}
}

// BuildLocker instantiates a <locker> declaration, recursing into
// fallback children. It also returns the configured retry/timeout
// intervals (spec §4.C per-instance defaults) for the caller to pass to
// lock.LockOrWait.
func BuildLocker(l LockerXML) (locker lock.Locker, retryInterval, timeout time.Duration, err error) {
	retryInterval = time.Duration(l.Retry * float64(time.Second))
	timeout = time.Duration(l.Timeout * float64(time.Second))
	if retryInterval <= 0 {
		retryInterval = lock.DefaultRetryInterval
	}
	if timeout <= 0 {
		timeout = lock.DefaultTimeout
	}

	switch l.Type {
	case "disk":
		locker = &lock.DiskLocker{Dir: l.Directory}
	case "memcache":
		locker = &lock.MemcacheLocker{Servers: l.Server, KeyPrefix: l.KeyPrefix, TimeoutSec: int(timeout.Seconds())}
	case "fallback":
		children := make([]lock.Locker, 0, len(l.Lockers))
		for _, child := range l.Lockers {
			built, _, _, cerr := BuildLocker(child)
			if cerr != nil {
				return nil, 0, 0, cerr
			}
			children = append(children, built)
		}
		locker = &lock.FallbackLocker{Children: children}
	default:
		return nil, 0, 0, fmt.Errorf("unknown locker type %q", l.Type)
	}
	return locker, retryInterval, timeout, nil
}

// BuildGrids instantiates the named grid registry from an alias's
// top-level <grid> declarations, for BuildTilesets to resolve <tileset>
// <grid> children against. Cell-extent/projection math lives on
// tile.Grid itself (spec §3); this function only does config plumbing —
// parsing declared resolutions and tile size — not grid geometry.
func BuildGrids(ac *AliasConfig) (map[string]*tile.Grid, error) {
	grids := make(map[string]*tile.Grid, len(ac.Grids))
	for _, g := range ac.Grids {
		res, err := parseResolutions(g.Resolutions)
		if err != nil {
			return nil, fmt.Errorf("config: grid %q: %w", g.Name, err)
		}
		w, h := g.TileWidth, g.TileHeight
		if w == 0 {
			w = tile.DefaultTileWidth
		}
		if h == 0 {
			h = tile.DefaultTileHeight
		}
		grids[g.Name] = &tile.Grid{
			Name:        g.Name,
			Projection:  g.SRS,
			Resolutions: res,
			TileWidth:   w,
			TileHeight:  h,
			OriginX:     g.OriginX,
			OriginY:     g.OriginY,
		}
	}
	return grids, nil
}

func parseResolutions(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid resolution %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// BuildTilesets resolves each <tileset>'s grid links against a registry
// of named grids and returns the tile.Tileset model.
func BuildTilesets(ac *AliasConfig, grids map[string]*tile.Grid) (map[string]*tile.Tileset, error) {
	out := make(map[string]*tile.Tileset, len(ac.Tilesets))
	for _, t := range ac.Tilesets {
		ts := &tile.Tileset{
			Name:           t.Name,
			Source:         t.Source,
			Format:         t.Format,
			MetaTileWidth:  t.MetaTileWidth,
			MetaTileHeight: t.MetaTileHeight,
			MetaBuffer:     t.MetaBuffer,
			Watermark:      t.Watermark,
			Expires:        time.Duration(t.ExpiresSeconds) * time.Second,
			ReadOnly:       t.ReadOnly,
		}
		for _, g := range t.Grids {
			grid, ok := grids[g.Name]
			if !ok {
				return nil, fmt.Errorf("tileset %q references undeclared grid %q", t.Name, g.Name)
			}
			ts.Grids = append(ts.Grids, &tile.GridLink{Grid: grid, MinZoom: g.MinZoom, MaxZoom: g.MaxZoom})
		}
		if t.MetaTileWidth == 0 {
			ts.MetaTileWidth = 1
		}
		if t.MetaTileHeight == 0 {
			ts.MetaTileHeight = 1
		}
		out[t.Name] = ts
	}
	return out, nil
}
