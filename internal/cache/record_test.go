package cache

import (
	"testing"
	"time"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	in := &Record{
		MIME:   "image/png",
		Mtime:  time.Now().UTC().Truncate(time.Second),
		Nodata: true,
		Data:   []byte{1, 2, 3, 4, 5},
	}
	enc, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.MIME != in.MIME || out.Nodata != in.Nodata || !out.Mtime.Equal(in.Mtime) {
		t.Fatalf("metadata mismatch: got %+v want %+v", out, in)
	}
	if string(out.Data) != string(in.Data) {
		t.Fatalf("data mismatch: got %v want %v", out.Data, in.Data)
	}
}
