package memorycache

import (
	"net/http"
	"testing"

	"github.com/trickster-io/mapcache/internal/cache"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

func TestDetectBlankStoresSentinelAndExpandsOnRead(t *testing.T) {
	c := New("blank", true)
	ctx := mctx.New(http.Header{})

	pixels := make([]byte, 4*4*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0, 0, 0, 0
	}
	in := &tile.Tile{Tileset: "l", Grid: "g", X: 1, Y: 2, Z: 3, RawImage: pixels, EncodedData: []byte("a big decoded png"), MIME: "image/png"}
	if err := c.Set(ctx, in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	r := c.data[in.Key()]
	if !tile.IsBlankSentinel(r.Data) {
		t.Fatalf("expected stored record to be the 5-byte blank sentinel, got %d bytes", len(r.Data))
	}
	if r.MIME != tile.BlankMIME {
		t.Fatalf("expected stored MIME %q, got %q", tile.BlankMIME, r.MIME)
	}

	out := &tile.Tile{Tileset: "l", Grid: "g", X: 1, Y: 2, Z: 3}
	if res := c.Get(ctx, out); res != cache.Success {
		t.Fatalf("expected cache.Success, got %v", res)
	}
	if !out.Nodata {
		t.Fatalf("expected Nodata=true on blank-tile read")
	}
	if len(out.RawImage) != tile.DefaultTileWidth*tile.DefaultTileHeight*4 {
		t.Fatalf("expected expanded RawImage of %d bytes, got %d", tile.DefaultTileWidth*tile.DefaultTileHeight*4, len(out.RawImage))
	}
}

func TestDetectBlankDisabledStoresFullPayload(t *testing.T) {
	c := New("full", false)
	ctx := mctx.New(http.Header{})

	pixels := make([]byte, 4*4*4)
	in := &tile.Tile{Tileset: "l", Grid: "g", X: 1, Y: 2, Z: 3, RawImage: pixels, EncodedData: []byte("a big decoded png"), MIME: "image/png"}
	if err := c.Set(ctx, in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	r := c.data[in.Key()]
	if tile.IsBlankSentinel(r.Data) {
		t.Fatalf("expected full payload to be stored unmodified when detect_blank is off")
	}
}
