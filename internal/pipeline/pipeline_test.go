package pipeline

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trickster-io/mapcache/internal/cache/memorycache"
	"github.com/trickster-io/mapcache/internal/lock"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/tile"
)

type countingRenderer struct {
	calls int32
	delay time.Duration
}

func (r *countingRenderer) RenderMetatile(ctx *mctx.Context, ts *tile.Tileset, req *tile.Tile) ([]*tile.Tile, error) {
	atomic.AddInt32(&r.calls, 1)
	time.Sleep(r.delay)
	out := *req
	out.EncodedData = []byte("rendered")
	out.MIME = "image/png"
	out.Mtime = time.Now()
	return []*tile.Tile{&out}, nil
}

// memLocker is a trivial process-local Locker good enough to exercise the
// pipeline's cross-process-lock code path in a single test binary.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memLocker) Acquire(ctx *mctx.Context, resource string) (lock.Status, lock.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[resource] {
		return lock.Locked, resource
	}
	m.held[resource] = true
	return lock.Acquired, resource
}
func (m *memLocker) Ping(ctx *mctx.Context, tok lock.Token) lock.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[tok.(string)] {
		return lock.Locked
	}
	return lock.Noent
}
func (m *memLocker) Release(ctx *mctx.Context, tok lock.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, tok.(string))
}

func TestFetchRendersOnceOnColdMiss(t *testing.T) {
	renderer := &countingRenderer{}
	p := &Pipeline{
		Cache:         memorycache.New("mem", false),
		Locker:        &memLocker{},
		Renderer:      renderer,
		RetryInterval: time.Millisecond,
		Timeout:       time.Second,
	}
	ts := &tile.Tileset{Name: "l", MetaTileWidth: 1, MetaTileHeight: 1}
	ctx := mctx.New(http.Header{})

	req := &tile.Tile{Tileset: "l", Grid: "g", Z: 3, X: 4, Y: 5}
	got, err := p.Fetch(ctx, ts, req)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(got.EncodedData) != "rendered" {
		t.Fatalf("unexpected payload: %q", got.EncodedData)
	}
	if renderer.calls != 1 {
		t.Fatalf("expected exactly one render, got %d", renderer.calls)
	}

	// Second request for the same tile should come from cache.
	req2 := &tile.Tile{Tileset: "l", Grid: "g", Z: 3, X: 4, Y: 5}
	if _, err := p.Fetch(ctx, ts, req2); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if renderer.calls != 1 {
		t.Fatalf("expected render count to stay at 1 after a cache hit, got %d", renderer.calls)
	}
}

func TestConcurrentRequestsCoalesceOneRender(t *testing.T) {
	renderer := &countingRenderer{delay: 20 * time.Millisecond}
	p := &Pipeline{
		Cache:         memorycache.New("mem", false),
		Locker:        &memLocker{},
		Renderer:      renderer,
		RetryInterval: time.Millisecond,
		Timeout:       time.Second,
	}
	ts := &tile.Tileset{Name: "l", MetaTileWidth: 1, MetaTileHeight: 1}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := mctx.New(http.Header{})
			req := &tile.Tile{Tileset: "l", Grid: "g", Z: 3, X: 4, Y: 5}
			if _, err := p.Fetch(ctx, ts, req); err != nil {
				t.Errorf("fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if renderer.calls != 1 {
		t.Fatalf("expected the renderer to be invoked exactly once across 10 concurrent callers, got %d", renderer.calls)
	}
}
