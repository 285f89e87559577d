package lock

import (
	"sync"

	"github.com/trickster-io/mapcache/internal/mctx"
)

// MemcacheLocker implements Locker atop the ASCII memcache protocol: add
// is the create-only acquire, get is the ping, delete is the release.
type MemcacheLocker struct {
	Servers    []string
	KeyPrefix  string
	TimeoutSec int

	clientMu sync.Mutex
	client   *memcacheClient
}

func (l *MemcacheLocker) ensureClient() *memcacheClient {
	l.clientMu.Lock()
	defer l.clientMu.Unlock()
	if l.client == nil {
		l.client = newMemcacheClient(l.Servers)
	}
	return l.client
}

func (l *MemcacheLocker) key(resource string) string {
	return l.KeyPrefix + "_gc_lock" + Canonicalize(resource) + ".lck"
}

type memcacheToken struct {
	key string
}

// Acquire adds the canonicalized key with value "1" and an expiration
// equal to the configured timeout.
func (l *MemcacheLocker) Acquire(ctx *mctx.Context, resource string) (Status, Token) {
	k := l.key(resource)
	ttl := l.TimeoutSec
	if ttl <= 0 {
		ttl = int(DefaultTimeout.Seconds())
	}
	ok, err := l.ensureClient().add(k, "1", ttl)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, "memcachelock", "add %s: %v", k, err)
		return Locked, memcacheToken{key: k}
	}
	if ok {
		return Acquired, memcacheToken{key: k}
	}
	return Locked, memcacheToken{key: k}
}

// Ping reports Locked if the key is still present, Noent otherwise.
func (l *MemcacheLocker) Ping(ctx *mctx.Context, tok Token) Status {
	t, _ := tok.(memcacheToken)
	_, found, err := l.ensureClient().get(t.key)
	if err != nil {
		ctx.SetError(mctx.CodeInternal, "memcachelock", "get %s: %v", t.key, err)
		return Locked
	}
	if found {
		return Locked
	}
	return Noent
}

// Release deletes the key.
func (l *MemcacheLocker) Release(ctx *mctx.Context, tok Token) {
	t, _ := tok.(memcacheToken)
	if _, err := l.ensureClient().delete(t.key); err != nil {
		ctx.SetError(mctx.CodeInternal, "memcachelock", "delete %s: %v", t.key, err)
	}
}
