package reqpool

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/trickster-io/mapcache/internal/mctx"
)

func TestGetReleaseReuse(t *testing.T) {
	var created int
	p := New("test", Config{HMax: 2, AcquireWait: 50 * time.Millisecond}, func(key string) (interface{}, error) {
		created++
		return created, nil
	}, nil)

	ctx := mctx.New(http.Header{})
	b1 := p.Get(ctx, "k")
	if ctx.HasError() {
		t.Fatalf("unexpected error: %v", ctx)
	}
	p.Release(ctx, b1)

	b2 := p.Get(ctx, "k")
	if b2.Resource() != b1.Resource() {
		t.Fatal("expected the released connection to be reused")
	}
	if created != 1 {
		t.Fatalf("expected exactly one construction, got %d", created)
	}
}

func TestHMaxSaturationReturns503(t *testing.T) {
	p := New("test", Config{HMax: 1, AcquireWait: 20 * time.Millisecond}, func(key string) (interface{}, error) {
		return struct{}{}, nil
	}, nil)

	ctx1 := mctx.New(http.Header{})
	b1 := p.Get(ctx1, "k")
	if b1 == nil {
		t.Fatal("first acquire should succeed")
	}

	ctx2 := mctx.New(http.Header{})
	b2 := p.Get(ctx2, "k")
	if b2 != nil {
		t.Fatal("second acquire should fail while hmax=1 is saturated")
	}
	code, _, _ := ctx2.Error()
	if code != mctx.CodeServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %d", code)
	}
}

func TestConcurrentAcquireServedUnderHMax(t *testing.T) {
	p := New("test", Config{HMax: 3, AcquireWait: 200 * time.Millisecond}, func(key string) (interface{}, error) {
		return struct{}{}, nil
	}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := mctx.New(http.Header{})
			if b := p.Get(ctx, "k"); b != nil {
				mu.Lock()
				successes++
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				p.Release(ctx, b)
			}
		}()
	}
	wg.Wait()
	if successes != 3 {
		t.Fatalf("expected all 3 concurrent acquires within hmax to succeed, got %d", successes)
	}
}
