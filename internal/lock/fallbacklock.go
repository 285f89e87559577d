package lock

import (
	"github.com/trickster-io/mapcache/internal/mctx"
)

// FallbackLocker tries each child locker in order; the first that
// acquires without error wins. Per OQ3, the returned token records
// exactly which child acquired it so Release/Ping never address the
// wrong child.
type FallbackLocker struct {
	Children []Locker
}

type fallbackToken struct {
	childIndex int
	childTok   Token
}

// Acquire tries each child in turn. Errors from earlier children are
// suppressed (the saved/restored error state) as long as a later child
// remains to try, per spec §4.C.
func (l *FallbackLocker) Acquire(ctx *mctx.Context, resource string) (Status, Token) {
	var lastStatus Status = Locked
	var lastTok Token
	for i, child := range l.Children {
		saved := ctx.PushErrors()
		status, tok := child.Acquire(ctx, resource)
		hadErr := ctx.HasError()
		if !hadErr || i < len(l.Children)-1 {
			// No later child remains after the last one, so its error
			// stays on ctx.
			ctx.PopErrors(saved)
		}

		if status == Acquired {
			return Acquired, fallbackToken{childIndex: i, childTok: tok}
		}
		if !hadErr {
			lastStatus = status
			lastTok = fallbackToken{childIndex: i, childTok: tok}
		}
		// On error, or on Locked/Noent, try the next child.
	}
	if lastStatus == Locked {
		// Keep the winning child's token dispatchable so the
		// lock_or_wait loop's Ping reaches the child that actually
		// holds the lock, the same way disklock/memcachelock return a
		// valid token alongside Locked.
		return lastStatus, lastTok
	}
	return lastStatus, nil
}

// Ping dispatches to whichever child acquired the lock.
func (l *FallbackLocker) Ping(ctx *mctx.Context, tok Token) Status {
	t, ok := tok.(fallbackToken)
	if !ok || t.childIndex >= len(l.Children) {
		return Noent
	}
	return l.Children[t.childIndex].Ping(ctx, t.childTok)
}

// Release dispatches to whichever child acquired the lock.
func (l *FallbackLocker) Release(ctx *mctx.Context, tok Token) {
	t, ok := tok.(fallbackToken)
	if !ok || t.childIndex >= len(l.Children) {
		return
	}
	l.Children[t.childIndex].Release(ctx, t.childTok)
}
