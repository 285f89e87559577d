package lock

import (
	"net/http"
	"testing"

	"github.com/trickster-io/mapcache/internal/mctx"
)

func TestDiskLockerAcquirePingRelease(t *testing.T) {
	dir := t.TempDir()
	l := &DiskLocker{Dir: dir}
	ctx := mctx.New(http.Header{})

	status, tok := l.Acquire(ctx, "layer/0/0/0")
	if status != Acquired {
		t.Fatalf("expected Acquired, got %v", status)
	}

	status2, _ := l.Acquire(ctx, "layer/0/0/0")
	if status2 != Locked {
		t.Fatalf("second acquire of the same resource should be Locked, got %v", status2)
	}

	if got := l.Ping(ctx, tok); got != Locked {
		t.Fatalf("expected Locked while file exists, got %v", got)
	}

	l.Release(ctx, tok)

	if got := l.Ping(ctx, tok); got != Noent {
		t.Fatalf("expected Noent after release, got %v", got)
	}
}
