package config

import (
	"testing"

	"github.com/trickster-io/mapcache/internal/tile"
)

func TestBuildGridsParsesResolutionsAndTileSize(t *testing.T) {
	ac := &AliasConfig{
		Grids: []GridXML{
			{Name: "webmercator", SRS: "EPSG:3857", Resolutions: "156543.03 78271.51 39135.75", TileWidth: 256, TileHeight: 256},
		},
	}
	grids, err := BuildGrids(ac)
	if err != nil {
		t.Fatalf("BuildGrids failed: %v", err)
	}
	g, ok := grids["webmercator"]
	if !ok {
		t.Fatal("expected grid \"webmercator\" to be built")
	}
	if len(g.Resolutions) != 3 {
		t.Fatalf("expected 3 resolutions, got %d", len(g.Resolutions))
	}
	if g.TileWidth != 256 || g.TileHeight != 256 {
		t.Fatalf("expected 256x256 tile size, got %dx%d", g.TileWidth, g.TileHeight)
	}
}

func TestBuildGridsDefaultsTileSize(t *testing.T) {
	ac := &AliasConfig{Grids: []GridXML{{Name: "g", Resolutions: "1 2"}}}
	grids, err := BuildGrids(ac)
	if err != nil {
		t.Fatalf("BuildGrids failed: %v", err)
	}
	if grids["g"].TileWidth != 256 || grids["g"].TileHeight != 256 {
		t.Fatalf("expected default 256x256 tile size")
	}
}

func TestBuildGridsRejectsBadResolution(t *testing.T) {
	ac := &AliasConfig{Grids: []GridXML{{Name: "g", Resolutions: "1 notanumber"}}}
	if _, err := BuildGrids(ac); err == nil {
		t.Fatal("expected an error for a non-numeric resolution")
	}
}

func TestBuildTilesetsResolvesDeclaredGrid(t *testing.T) {
	ac := &AliasConfig{
		Grids: []GridXML{{Name: "g", Resolutions: "1 2 3"}},
		Tilesets: []TilesetXML{
			{Name: "ts", Grids: []GridLinkXML{{Name: "g", MinZoom: 0, MaxZoom: 2}}},
		},
	}
	grids, err := BuildGrids(ac)
	if err != nil {
		t.Fatalf("BuildGrids failed: %v", err)
	}
	tilesets, err := BuildTilesets(ac, grids)
	if err != nil {
		t.Fatalf("BuildTilesets failed: %v", err)
	}
	ts, ok := tilesets["ts"]
	if !ok || len(ts.Grids) != 1 {
		t.Fatalf("expected tileset %q to resolve its grid link", "ts")
	}
	if ts.Grids[0].Grid.Name != "g" {
		t.Fatalf("expected resolved grid name %q, got %q", "g", ts.Grids[0].Grid.Name)
	}
}

func TestBuildTilesetsRejectsUndeclaredGrid(t *testing.T) {
	ac := &AliasConfig{
		Tilesets: []TilesetXML{
			{Name: "ts", Grids: []GridLinkXML{{Name: "missing"}}},
		},
	}
	if _, err := BuildTilesets(ac, map[string]*tile.Grid{}); err == nil {
		t.Fatal("expected an error for a tileset referencing an undeclared grid")
	}
}
