package lock

import (
	"net/http"
	"testing"
	"time"

	"github.com/trickster-io/mapcache/internal/mctx"
)

func TestCanonicalize(t *testing.T) {
	in := "wms/cache layer~v1.0"
	out := Canonicalize(in)
	for _, r := range out {
		if r == ' ' || r == '/' || r == '~' || r == '.' {
			t.Fatalf("canonicalized string %q still contains a disallowed character", out)
		}
	}
}

// alwaysLocked simulates a lock another worker already holds and never
// releases, exercising the LockOrWait timeout path (OQ1).
type alwaysLocked struct{}

func (alwaysLocked) Acquire(ctx *mctx.Context, resource string) (Status, Token) {
	return Locked, nil
}
func (alwaysLocked) Ping(ctx *mctx.Context, tok Token) Status { return Locked }
func (alwaysLocked) Release(ctx *mctx.Context, tok Token)     {}

func TestLockOrWaitTimesOut(t *testing.T) {
	ctx := mctx.New(http.Header{})
	owned, tok := LockOrWait(ctx, alwaysLocked{}, "r1", 5*time.Millisecond, 20*time.Millisecond)
	if owned || tok != nil {
		t.Fatal("LockOrWait should report not-owned after its timeout elapses")
	}
}

// onceThenGone hands back Acquired to the first caller and Noent to
// everyone else pinging afterward, simulating the winner finishing.
type onceThenGone struct{ acquired bool }

func (o *onceThenGone) Acquire(ctx *mctx.Context, resource string) (Status, Token) {
	if !o.acquired {
		o.acquired = true
		return Acquired, "tok"
	}
	return Locked, "tok"
}
func (o *onceThenGone) Ping(ctx *mctx.Context, tok Token) Status { return Noent }
func (o *onceThenGone) Release(ctx *mctx.Context, tok Token)     {}

func TestLockOrWaitCoalescesOnNoent(t *testing.T) {
	ctx := mctx.New(http.Header{})
	l := &onceThenGone{}

	owned1, _ := LockOrWait(ctx, l, "r1", time.Millisecond, time.Second)
	if !owned1 {
		t.Fatal("first caller should acquire the lock")
	}

	owned2, tok2 := LockOrWait(ctx, l, "r1", time.Millisecond, time.Second)
	if owned2 || tok2 != nil {
		t.Fatal("second caller should observe Noent and report not-owned")
	}
}
