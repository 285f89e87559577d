package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/trickster-io/mapcache/internal/mctx"
)

// DiskLocker implements Locker by exclusively creating a file per resource
// in Dir, per spec §4.C's disk-locker contract.
type DiskLocker struct {
	Dir string
}

// diskToken is the path of the lock file this worker is watching/holding.
type diskToken struct {
	path string
}

func (l *DiskLocker) path(resource string) string {
	return filepath.Join(l.Dir, "_gc_lock"+Canonicalize(resource)+".lck")
}

// Acquire attempts an exclusive-create of the resource's lock file,
// writing this process's pid as a debugging aid.
func (l *DiskLocker) Acquire(ctx *mctx.Context, resource string) (Status, Token) {
	p := l.path(resource)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Close()
		return Acquired, diskToken{path: p}
	}
	if os.IsExist(err) {
		return Locked, diskToken{path: p}
	}
	ctx.SetError(mctx.CodeInternal, "disklock", "create %s: %v", p, err)
	return Locked, diskToken{path: p}
}

// Ping stats the lock file: present means still Locked, absent means the
// owner released it (Noent).
func (l *DiskLocker) Ping(ctx *mctx.Context, tok Token) Status {
	t, _ := tok.(diskToken)
	if _, err := os.Stat(t.path); err != nil {
		if os.IsNotExist(err) {
			return Noent
		}
		ctx.SetError(mctx.CodeInternal, "disklock", "stat %s: %v", t.path, err)
		return Locked
	}
	return Locked
}

// Release unlinks the lock file. Idempotent: a missing file is not an
// error at this level.
func (l *DiskLocker) Release(ctx *mctx.Context, tok Token) {
	t, _ := tok.(diskToken)
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		ctx.SetError(mctx.CodeInternal, "disklock", "remove %s: %v", t.path, err)
	}
}
