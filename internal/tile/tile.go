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

// Package tile holds the MapCache data model: Tile, Tileset, Grid, and
// GridLink (spec §3), plus the metatile-aligned resource key computation
// and blank-tile sentinel encoding used by the tile pipeline (spec §4.F).
package tile

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Dimensions maps dimension name to string value (e.g. TIME, ELEVATION).
// It keeps no insertion order; Signature encodes it sorted by name, so the
// resource/cache key does not depend on the order dimensions were set.
type Dimensions map[string]string

// Signature returns a stable, sorted-key string encoding of the
// dimensions, used in cache and resource keys.
func (d Dimensions) Signature() string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, d[k])
	}
	return b.String()
}

// Tile is the immutable-identity, mutable-payload unit described in
// spec §3. EncodedData/MIME/Mtime/Nodata are populated by cache backends
// and the renderer; the identity fields are set once by the dispatcher.
type Tile struct {
	Tileset    string
	Grid       string
	X, Y, Z    int
	Dimensions Dimensions

	EncodedData []byte
	MIME        string
	Mtime       time.Time
	Nodata      bool

	// RawImage holds decoded RGBA pixels when the renderer or a
	// detect_blank-enabled backend has them available; nil otherwise.
	RawImage []byte
}

// Key returns the cache key for this tile's exact identity.
func (t *Tile) Key() string {
	return fmt.Sprintf("%s/%s/%d/%d/%d/%s", t.Tileset, t.Grid, t.Z, t.X, t.Y, t.Dimensions.Signature())
}

// Grid holds projection, resolutions, tile pixel size, and origin, per
// spec §3. CellExtent computes the geographic extent of tile (x,y) at
// zoom z.
type Grid struct {
	Name        string
	Projection  string
	Resolutions []float64
	TileWidth   int
	TileHeight  int
	OriginX     float64
	OriginY     float64
}

// CellExtent returns (minx, miny, maxx, maxy) for the tile at (x, y, z).
func (g *Grid) CellExtent(x, y, z int) (minx, miny, maxx, maxy float64) {
	if z < 0 || z >= len(g.Resolutions) {
		return 0, 0, 0, 0
	}
	res := g.Resolutions[z]
	w := res * float64(g.TileWidth)
	h := res * float64(g.TileHeight)
	minx = g.OriginX + float64(x)*w
	miny = g.OriginY + float64(y)*h
	return minx, miny, minx + w, miny + h
}

// GridLink binds a Tileset to a Grid with an optional restricted extent
// and zoom range, per spec §3.
type GridLink struct {
	Grid           *Grid
	MinZoom        int
	MaxZoom        int
	RestrictExtent [4]float64 // minx, miny, maxx, maxy; zero value = unrestricted
}

// InRange reports whether z is servable for this link.
func (gl *GridLink) InRange(z int) bool {
	return z >= gl.MinZoom && z <= gl.MaxZoom
}

// Tileset names a logical layer, per spec §3. Immutable after configuration.
type Tileset struct {
	Name           string
	Source         string
	Grids          []*GridLink
	Format         string
	MetaTileWidth  int
	MetaTileHeight int
	MetaBuffer     int
	Watermark      string
	Expires        time.Duration
	ReadOnly       bool
}

// MetaOrigin computes the metatile-aligned lower-left corner (x_meta,
// y_meta) containing tile (x, y), per spec §4.F step 1.
func (ts *Tileset) MetaOrigin(x, y int) (xMeta, yMeta int) {
	mw := ts.MetaTileWidth
	mh := ts.MetaTileHeight
	if mw <= 0 {
		mw = 1
	}
	if mh <= 0 {
		mh = 1
	}
	xMeta = (x / mw) * mw
	yMeta = (y / mh) * mh
	return xMeta, yMeta
}

// Resource computes the lock/coalescing resource key for the metatile
// containing t, per spec §4.F step 1: tileset+grid+z+x_meta+y_meta+dims.
func (ts *Tileset) Resource(t *Tile) string {
	xMeta, yMeta := ts.MetaOrigin(t.X, t.Y)
	return fmt.Sprintf("%s/%s/%d/%d/%d/%s", ts.Name, t.Grid, t.Z, xMeta, yMeta, t.Dimensions.Signature())
}
