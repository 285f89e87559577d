package tile

import "testing"

func TestUniformColorAndBlankRoundTrip(t *testing.T) {
	pixels := make([]byte, 256*256*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0, 0, 0, 0
	}
	r, g, b, a, uniform := UniformColor(pixels)
	if !uniform {
		t.Fatal("expected uniform transparent buffer to be detected")
	}

	sentinel := EncodeBlank(r, g, b, a)
	if len(sentinel) != 5 || sentinel[0] != '#' {
		t.Fatalf("expected 5-byte sentinel, got %d bytes", len(sentinel))
	}

	expanded, err := ExpandBlank(sentinel, 256, 256)
	if err != nil {
		t.Fatalf("ExpandBlank failed: %v", err)
	}
	if len(expanded) != len(pixels) {
		t.Fatalf("expanded buffer size mismatch: got %d want %d", len(expanded), len(pixels))
	}
}

func TestUniformColorRejectsNonUniform(t *testing.T) {
	pixels := make([]byte, 8)
	pixels[4] = 255
	if _, _, _, _, uniform := UniformColor(pixels); uniform {
		t.Fatal("expected non-uniform buffer to be rejected")
	}
}

func TestResourceUsesMetatileOrigin(t *testing.T) {
	ts := &Tileset{Name: "l", MetaTileWidth: 8, MetaTileHeight: 8}
	t1 := &Tile{Grid: "g", Z: 3, X: 4, Y: 5}
	t2 := &Tile{Grid: "g", Z: 3, X: 6, Y: 7}
	if ts.Resource(t1) != ts.Resource(t2) {
		t.Fatal("tiles in the same metatile should share a resource key")
	}
}
