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

package cache

import (
	"time"

	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"
	"github.com/trickster-io/mapcache/internal/tile"
)

// Record is the on-the-wire envelope stored by every backend: the tile's
// mutable payload plus enough metadata to answer conditional GETs without
// decoding the image. Hand-marshaled against tinylib/msgp (no codegen),
// the same approach trickster's internal/proxy/engines/cache.go uses for
// its HTTPDocument envelope.
type Record struct {
	MIME   string
	Mtime  time.Time
	Nodata bool
	Data   []byte
}

// MarshalMsg appends the msgpack encoding of r to b.
func (r *Record) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "mime")
	b = msgp.AppendString(b, r.MIME)
	b = msgp.AppendString(b, "mtime")
	b = msgp.AppendTime(b, r.Mtime)
	b = msgp.AppendString(b, "nodata")
	b = msgp.AppendBool(b, r.Nodata)
	b = msgp.AppendString(b, "data")
	b = msgp.AppendBytes(b, r.Data)
	return b, nil
}

// UnmarshalMsg decodes r from the msgpack encoding in b, returning any
// trailing bytes.
func (r *Record) UnmarshalMsg(b []byte) ([]byte, error) {
	var n uint32
	var err error
	n, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	for i := uint32(0); i < n; i++ {
		var field string
		field, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return b, err
		}
		switch field {
		case "mime":
			r.MIME, b, err = msgp.ReadStringBytes(b)
		case "mtime":
			r.Mtime, b, err = msgp.ReadTimeBytes(b)
		case "nodata":
			r.Nodata, b, err = msgp.ReadBoolBytes(b)
		case "data":
			r.Data, b, err = msgp.ReadBytesBytes(b, nil)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

// Encode serializes and snappy-compresses r into a single buffer suitable
// for a backend's Set.
func Encode(r *Record) ([]byte, error) {
	raw, err := r.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reverses Encode.
func Decode(compressed []byte) (*Record, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, err
	}
	r := &Record{}
	if _, err := r.UnmarshalMsg(raw); err != nil {
		return nil, err
	}
	return r, nil
}

// PrepareRecord builds the Record a backend should store for t. When
// detectBlank is set and t.RawImage is a uniform color, the stored payload
// is replaced with the 5-byte blank sentinel per spec §4.F, shrinking
// storage for oceans and sky; otherwise t's payload is stored as-is.
func PrepareRecord(t *tile.Tile, detectBlank bool) *Record {
	data, mime, nodata := t.EncodedData, t.MIME, t.Nodata
	if detectBlank && len(t.RawImage) > 0 {
		if r, g, b, a, uniform := tile.UniformColor(t.RawImage); uniform {
			data = tile.EncodeBlank(r, g, b, a)
			mime = tile.BlankMIME
			nodata = true
		}
	}
	return &Record{MIME: mime, Mtime: t.Mtime, Nodata: nodata, Data: data}
}

// ApplyRecord populates t from a loaded Record. When detectBlank is set
// and r holds a blank sentinel, t.RawImage is expanded back to a full
// blank tile per spec §4.F; EncodedData still carries the compact
// sentinel bytes since re-encoding a full-size image is the job of the
// tile-image encoder named out of scope by spec §1.
func ApplyRecord(t *tile.Tile, r *Record, detectBlank bool) {
	t.EncodedData = r.Data
	t.MIME = r.MIME
	t.Mtime = r.Mtime
	t.Nodata = r.Nodata
	if detectBlank && tile.IsBlankSentinel(r.Data) {
		if pixels, err := tile.ExpandBlank(r.Data, tile.DefaultTileWidth, tile.DefaultTileHeight); err == nil {
			t.RawImage = pixels
			t.Nodata = true
		}
	}
}
