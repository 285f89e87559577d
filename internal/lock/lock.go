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

// Package lock implements the named distributed-locking subsystem of
// spec §4.C: a common Locker contract with disk-file, memcache, and
// fallback-chain implementations, plus the lock_or_wait retry/timeout
// routine used by the tile pipeline to serialize renders.
package lock

import (
	"fmt"
	"strings"
	"time"

	"github.com/trickster-io/mapcache/internal/log"
	"github.com/trickster-io/mapcache/internal/mctx"
	"github.com/trickster-io/mapcache/internal/metrics"
)

// Status is the result of Acquire or Ping.
type Status int

const (
	Acquired Status = iota
	Locked
	Noent
)

// Token is an opaque handle returned by Acquire, passed back to Ping and
// Release. Each locker defines its own concrete token type.
type Token interface{}

// Locker is satisfied by DiskLocker, MemcacheLocker, and FallbackLocker.
type Locker interface {
	Acquire(ctx *mctx.Context, resource string) (Status, Token)
	Ping(ctx *mctx.Context, tok Token) Status
	Release(ctx *mctx.Context, tok Token)
}

// canonicalReplace is the exact character set named in spec §6: characters
// that cannot safely appear in a filesystem path or memcache key.
var canonicalReplace = " /~.\r\n\t\f\x1b\a\b"

// Canonicalize replaces every character in canonicalReplace with '#', per
// spec §6's persisted-layout rule and testable property 6.
func Canonicalize(resource string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(canonicalReplace, r) {
			return '#'
		}
		return r
	}, resource)
}

// Defaults for retry_interval and timeout, per spec §4.C.
const (
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultTimeout       = 120 * time.Second
)

// LockOrWait implements spec §4.C's lock_or_wait routine. Returns
// (true, tok) if the caller now owns the critical section — the caller
// must call l.Release(ctx, tok) when done; (false, nil) means the
// protected work was already performed by another worker (or the wait
// timed out and should be treated the same way) — the caller must re-read
// the cache.
func LockOrWait(ctx *mctx.Context, l Locker, resource string, retryInterval, timeout time.Duration) (bool, Token) {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	lockerName := fmt.Sprintf("%T", l)
	start := time.Now()

	status, tok := l.Acquire(ctx, resource)
	if status == Acquired {
		metrics.LockWaitSeconds.WithLabelValues(lockerName).Observe(time.Since(start).Seconds())
		return true, tok
	}

	deadline := start.Add(timeout)
	for status == Locked {
		if time.Now().After(deadline) {
			// OQ1: do not force-release a lock we don't own. A memcache
			// lock expires on its own TTL; a stale disk lock file is not
			// removed, so later waiters on it also time out here.
			log.WarnOnce("lock-timeout:"+resource, "deleting a possibly stale lock", log.Pairs{"resource": resource, "timeout": timeout.String()})
			metrics.LockWaitSeconds.WithLabelValues(lockerName).Observe(time.Since(start).Seconds())
			return false, nil
		}
		time.Sleep(retryInterval)
		status = l.Ping(ctx, tok)
	}
	// status == Noent: the winner finished and removed the lock.
	metrics.LockWaitSeconds.WithLabelValues(lockerName).Observe(time.Since(start).Seconds())
	return false, nil
}
