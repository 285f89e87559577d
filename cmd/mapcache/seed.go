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

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/trickster-io/mapcache/internal/config"
	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/pipeline"
	"github.com/trickster-io/mapcache/internal/tile"
)

// walkFlags are the common bounding-box/zoom flags shared by seed and
// clean: spec §1 names grid/extent geometry as an external collaborator,
// so the caller supplies the tile range directly rather than this package
// computing it from a geographic extent.
type walkFlags struct {
	tileset        string
	zoomMin, zoomMax int
	xMin, xMax     int
	yMin, yMax     int
}

func parseWalkFlags(name string, args []string) (*walkFlags, string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "mapcache.toml", "host configuration file")
	wf := &walkFlags{}
	fs.StringVar(&wf.tileset, "tileset", "", "tileset name to walk (default: all)")
	fs.IntVar(&wf.zoomMin, "zoom-min", 0, "minimum zoom level")
	fs.IntVar(&wf.zoomMax, "zoom-max", 0, "maximum zoom level")
	fs.IntVar(&wf.xMin, "x-min", 0, "minimum tile column")
	fs.IntVar(&wf.xMax, "x-max", 0, "maximum tile column")
	fs.IntVar(&wf.yMin, "y-min", 0, "minimum tile row")
	fs.IntVar(&wf.yMax, "y-max", 0, "maximum tile row")
	fs.Parse(args)
	return wf, *configPath
}

// seedSet is the subset of tileset/pipeline state seed and clean both walk.
type seedSet struct {
	tilesets  map[string]*tile.Tileset
	pipelines map[string]*pipeline.Pipeline
}

func loadSeedSet(hc *config.HostConfig) (*seedSet, error) {
	ss := &seedSet{tilesets: map[string]*tile.Tileset{}, pipelines: map[string]*pipeline.Pipeline{}}
	for _, ae := range hc.Aliases {
		alias, err := buildAlias(ae)
		if err != nil {
			return nil, err
		}
		for name, ts := range alias.Tilesets {
			ss.tilesets[name] = ts
			ss.pipelines[name] = alias.Pipelines[name]
		}
	}
	return ss, nil
}

// walk calls fn for every (tileset, z, x, y) cell selected by wf, honoring
// each GridLink's own MinZoom/MaxZoom where narrower than the requested
// range, and restricting x/y to the flags given on the command line (tile
// extent computation from a geographic bounding box is grid-geometry math,
// out of this package's scope per spec §1).
func walk(ss *seedSet, wf *walkFlags, fn func(ts *tile.Tileset, z, x, y int) error) (walked, failed int) {
	for name, ts := range ss.tilesets {
		if wf.tileset != "" && name != wf.tileset {
			continue
		}
		zMin, zMax := wf.zoomMin, wf.zoomMax
		links := ts.Grids
		if len(links) == 0 {
			links = []*tile.GridLink{{MinZoom: zMin, MaxZoom: zMax}}
		}
		for _, gl := range links {
			lo, hi := zMin, zMax
			if gl.MaxZoom > 0 && gl.MaxZoom < hi {
				hi = gl.MaxZoom
			}
			if gl.MinZoom > lo {
				lo = gl.MinZoom
			}
			for z := lo; z <= hi; z++ {
				for x := wf.xMin; x <= wf.xMax; x++ {
					for y := wf.yMin; y <= wf.yMax; y++ {
						if err := fn(ts, z, x, y); err != nil {
							failed++
							continue
						}
						walked++
					}
				}
			}
		}
	}
	return walked, failed
}

// seed implements the §6 "seed" entry point: render (or fetch-through) every
// tile in the requested range so it is populated in cache ahead of client
// traffic.
func seed(args []string) {
	wf, configPath := parseWalkFlags("seed", args)
	hc := loadHost([]string{"-config", configPath})
	ss, err := loadSeedSet(hc)
	if err != nil {
		log.Error("seed: failed to build aliases", log.Pairs{"err": err.Error()})
		os.Exit(1)
	}

	walked, failed := walk(ss, wf, func(ts *tile.Tileset, z, x, y int) error {
		p, ok := ss.pipelines[ts.Name]
		if !ok || p.Renderer == nil {
			return fmt.Errorf("no renderer configured for tileset %q", ts.Name)
		}
		ctx := mctx.New(http.Header{})
		t := &tile.Tile{Tileset: ts.Name, X: x, Y: y, Z: z}
		if len(ts.Grids) > 0 {
			t.Grid = ts.Grids[0].Grid.Name
		}
		_, err := p.Fetch(ctx, ts, t)
		return err
	})
	log.Info("seed complete", log.Pairs{"tiles_walked": walked, "tiles_failed": failed})
	if failed > 0 && walked == 0 {
		os.Exit(1)
	}
}

// clean implements the §6 "clean" entry point: purge every tile in the
// requested range from its tileset's cache.
func clean(args []string) {
	wf, configPath := parseWalkFlags("clean", args)
	hc := loadHost([]string{"-config", configPath})
	ss, err := loadSeedSet(hc)
	if err != nil {
		log.Error("clean: failed to build aliases", log.Pairs{"err": err.Error()})
		os.Exit(1)
	}

	deleted, failed := walk(ss, wf, func(ts *tile.Tileset, z, x, y int) error {
		p, ok := ss.pipelines[ts.Name]
		if !ok {
			return fmt.Errorf("no cache configured for tileset %q", ts.Name)
		}
		ctx := mctx.New(http.Header{})
		t := &tile.Tile{Tileset: ts.Name, X: x, Y: y, Z: z}
		if len(ts.Grids) > 0 {
			t.Grid = ts.Grids[0].Grid.Name
		}
		return p.Cache.Delete(ctx, t)
	})
	log.Info("clean complete", log.Pairs{"tiles_deleted": deleted, "tiles_failed": failed})
}
