// OS-level file locking for cross-process coordination over the cache
// directory.
//
// dirLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime. The mutex is held for the entire duration of the flock
// syscall so that Fd() cannot race with Close() on the same *os.File.
//
// Callers use setFile(nil) before closing the underlying file. This blocks
// until any in-flight flock completes, then makes subsequent Lock/Unlock
// calls no-ops. After reopening, setFile(f) restores normal operation.
package reachability

import (
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// dirLock coordinates OS-level file locks on a sentinel file inside the
// cache directory with safe handle teardown. The mu field serialises
// flock syscalls against setFile so that a concurrent Close cannot
// invalidate the fd mid-syscall. Held exclusively for the duration of
// computeGCRoots/computeDominators so a second process cannot run
// analysis against the same cache directory concurrently.
type dirLock struct {
	mu sync.Mutex
	f  *os.File
}

// Lock acquires a shared or exclusive flock. Returns nil immediately
// if the handle has been cleared via setFile(nil).
func (l *dirLock) Lock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// TryLock attempts a non-blocking flock, returning ErrAlreadyRunning if
// another process currently holds it. Used by computeGCRoots/
// computeDominators so a second process fails fast instead of blocking
// for the duration of another process's analysis run.
func (l *dirLock) TryLock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	ok, err := l.tryLock(mode)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Unlock releases the flock. Returns nil immediately if the handle
// has been cleared via setFile(nil).
func (l *dirLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// setFile swaps the underlying file handle. Passing nil drains any
// in-flight flock (blocks until the mutex is available) and disables
// further locking.
func (l *dirLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}
