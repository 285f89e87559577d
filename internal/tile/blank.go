package tile

import "fmt"

// BlankMIME is the sentinel MIME type for a stored uniform-color tile.
const BlankMIME = "image/mapcache-rgba"

// DefaultTileWidth/DefaultTileHeight are the pixel dimensions assumed when
// expanding a blank sentinel and no grid (whose tile size is grid-geometry
// data, out of this package's scope per spec §1) is available to a cache
// backend. 256x256 is the near-universal default tile size across
// WMTS/TMS grids.
const (
	DefaultTileWidth  = 256
	DefaultTileHeight = 256
)

// EncodeBlank returns the 5-byte sentinel ('#' + RGBA) for a uniform-color
// tile, per spec §4.F's blank-tile detection.
func EncodeBlank(r, g, b, a byte) []byte {
	return []byte{'#', r, g, b, a}
}

// IsBlankSentinel reports whether data is a valid 5-byte blank sentinel.
func IsBlankSentinel(data []byte) bool {
	return len(data) == 5 && data[0] == '#'
}

// DecodeBlank extracts the RGBA color from a blank sentinel.
func DecodeBlank(data []byte) (r, g, b, a byte, err error) {
	if !IsBlankSentinel(data) {
		return 0, 0, 0, 0, fmt.Errorf("tile: not a blank sentinel (len=%d)", len(data))
	}
	return data[1], data[2], data[3], data[4], nil
}

// ExpandBlank fills a width*height RGBA buffer with the sentinel's color,
// reconstructing the full blank tile on read per spec §4.F.
func ExpandBlank(data []byte, width, height int) ([]byte, error) {
	r, g, b, a, err := DecodeBlank(data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = a
	}
	return out, nil
}

// UniformColor reports whether an RGBA pixel buffer is a single uniform
// color, returning that color when true.
func UniformColor(pixels []byte) (r, g, b, a byte, uniform bool) {
	if len(pixels) < 4 || len(pixels)%4 != 0 {
		return 0, 0, 0, 0, false
	}
	r, g, b, a = pixels[0], pixels[1], pixels[2], pixels[3]
	for i := 4; i < len(pixels); i += 4 {
		if pixels[i] != r || pixels[i+1] != g || pixels[i+2] != b || pixels[i+3] != a {
			return 0, 0, 0, 0, false
		}
	}
	return r, g, b, a, true
}
