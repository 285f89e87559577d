package dispatch

import (
	"net/url"
	"testing"
)

func TestParseTMSTilePath(t *testing.T) {
	req := ParsePathInfo("/tms/1.0.0/basemap@GoogleMapsCompatible/3/4/5.png", url.Values{})
	if req.Kind != GetTile {
		t.Fatalf("expected GetTile, got %v", req.Kind)
	}
	if req.Tile.Tileset != "basemap" || req.Tile.Grid != "GoogleMapsCompatible" {
		t.Fatalf("unexpected identity: %+v", req.Tile)
	}
	if req.Tile.Z != 3 || req.Tile.X != 4 || req.Tile.Y != 5 {
		t.Fatalf("unexpected zxy: %+v", req.Tile)
	}
	if req.Tile.MIME != "image/png" {
		t.Fatalf("expected image/png, got %q", req.Tile.MIME)
	}
}

func TestParseWMSGetMap(t *testing.T) {
	q := url.Values{"REQUEST": {"GetMap"}}
	req := ParsePathInfo("/wms", q)
	if req.Kind != GetMap {
		t.Fatalf("expected GetMap, got %v", req.Kind)
	}
}

func TestParseWMSGetCapabilities(t *testing.T) {
	q := url.Values{"REQUEST": {"GetCapabilities"}}
	req := ParsePathInfo("/wms", q)
	if req.Kind != GetCapabilities {
		t.Fatalf("expected GetCapabilities, got %v", req.Kind)
	}
}

func TestParseUnknownServiceDeclines(t *testing.T) {
	req := ParsePathInfo("/notaservice/foo", url.Values{})
	if req.Kind != Decline {
		t.Fatalf("expected Decline for an unrecognized service prefix, got %v", req.Kind)
	}
}
