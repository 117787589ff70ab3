package pathio

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout matches spec.md §4.C's default per-file lock timeout.
const DefaultLockTimeout = 10 * time.Second

// StaleLockFactor is the multiplier spec.md §4.C applies to the lock timeout
// to decide a lock is abandoned ("owner process absent > timeout × 6").
const StaleLockFactor = 6

// FileLock is a per-file advisory lock, held for the duration of a
// read-modify-write cycle and released on all exit paths (spec.md §4.C,
// §5 "Shared-resource policy").
type FileLock struct {
	path string
	fl   *flock.Flock
}

// NewFileLock returns a lock bound to path+".lock". The lock file itself is
// never treated as entity content.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, fl: flock.New(path + ".lock")}
}

// Acquire blocks (polling) until the lock is obtained or timeout elapses,
// returning a plain error on timeout (the entity repository wraps it as an
// IO-kind error). Callers must call
// Release on every exit path, including error returns after partial work.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("timed out acquiring lock %s after %s", l.path, timeout)
	}
	return nil
}

// Release unlocks the file. It is safe to call even if Acquire failed.
func (l *FileLock) Release() error {
	if l.fl.Locked() {
		return l.fl.Unlock()
	}
	return nil
}

// RemoveStale removes the on-disk lock file for path if it is older than
// timeout*StaleLockFactor, implementing the administrative "stale lock"
// sweep spec.md §4.C describes. Age is the only test: it does not check
// whether the holding process is still alive, and no caller does either
// (lock files carry no owner PID), so a lock held longer than that by a
// live process is removed as well.
func RemoveStale(path string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lockPath := path + ".lock"
	info, err := os.Stat(lockPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if time.Since(info.ModTime()) < timeout*StaleLockFactor {
		return false, nil
	}
	if err := os.Remove(lockPath); err != nil {
		return false, err
	}
	return true, nil
}
