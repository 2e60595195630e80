// Sandboxed on-disk cache directory: the collaborator every engine in
// this package depends on for temp-file allocation, persisted-state
// paths, and the dirty marker that flags an interrupted run.
//
// Grounded on the teacher's os.Root-sandboxed file access (db.go's
// Open/Close) and dirLock (lock.go/lock_unix.go/lock_windows.go),
// generalized from "one database file" to "many named artifacts plus
// scratch files" under one root.
package reachability

import (
	"fmt"
	"os"
	"sync/atomic"
)

// CacheDir is the sandboxed directory this package uses for spilled
// streams, the ObjectTable and ReferenceList mapped files, and
// persisted analysis state. All paths are resolved relative to its
// root, so no component can escape it even given a crafted name.
type CacheDir struct {
	root    *os.Root
	path    string
	lock    *dirLock
	counter atomic.Int64
	cfg     Config
}

// OpenCacheDir opens (creating if necessary) the cache directory at
// path and opens its .lock file, the handle behind the cross-process
// coordination lock used by setDirty/clearDirty; no lock is held when
// it returns. cfg's HashAlgorithm selects the fingerprint used
// to derive temp-file names, and SyncWrites gates whether the dirty
// marker is fsynced.
func OpenCacheDir(path string, cfg Config) (*CacheDir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &IOError{"OpenCacheDir: mkdir", err}
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, &IOError{"OpenCacheDir: openroot", err}
	}
	markerPath := path + "/.lock"
	f, err := root.OpenFile(".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		root.Close()
		return nil, &IOError{"OpenCacheDir: lock file", err}
	}
	_ = markerPath
	return &CacheDir{root: root, path: path, lock: &dirLock{f: f}, cfg: cfg}, nil
}

// createTempFile satisfies tempFileOpener: every call resolves a fresh,
// content-fingerprinted path under the cache root, suitable for a
// spilled pagedStream or a newly allocated mapped region. The counter
// guarantees uniqueness even when two calls share a prefix; the hash
// turns the (prefix, counter) pair into the on-disk logical name.
func (c *CacheDir) createTempFile(prefix, suffix string) (string, error) {
	n := c.counter.Add(1)
	key := fmt.Sprintf("%s-%d", prefix, n)
	fp := contentHash64([]byte(key), c.cfg.HashAlgorithm)
	name := fmt.Sprintf("%s-%016x%s", prefix, fp, suffix)
	full := c.path + "/" + name
	f, err := c.root.Create(name)
	if err != nil {
		return "", &IOError{"CacheDir.createTempFile", err}
	}
	f.Close()
	return full, nil
}

// cacheFile returns the sandboxed path for a named persisted artifact
// (e.g. "objects.table", "refs.list", "manifest.bin"), creating it if
// absent.
func (c *CacheDir) cacheFile(name string) (string, error) {
	if _, err := c.root.Stat(name); os.IsNotExist(err) {
		f, err := c.root.Create(name)
		if err != nil {
			return "", &IOError{"CacheDir.cacheFile", err}
		}
		f.Close()
	}
	return c.path + "/" + name, nil
}

// isTemporary reports whether name looks like a spilled scratch file
// rather than a persisted artifact, based on the "pagedstream-" prefix
// createTempFile uses.
func (c *CacheDir) isTemporary(name string) bool {
	return len(name) >= 11 && name[:11] == "pagedstream"
}

// setDirty marks the cache directory as holding an in-progress (and
// therefore untrustworthy if read now) computation, under the
// directory's exclusive lock so concurrent openers see a consistent
// marker.
func (c *CacheDir) setDirty() error {
	if err := c.lock.Lock(LockExclusive); err != nil {
		return &IOError{"CacheDir.setDirty: lock", err}
	}
	defer c.lock.Unlock()
	if _, err := c.lock.f.WriteAt([]byte{1}, 0); err != nil {
		return &IOError{"CacheDir.setDirty: write", err}
	}
	if c.cfg.SyncWrites {
		if err := c.lock.f.Sync(); err != nil {
			return &IOError{"CacheDir.setDirty: sync", err}
		}
	}
	return nil
}

// clearDirty marks the cache directory's computation as having
// completed cleanly.
func (c *CacheDir) clearDirty() error {
	if err := c.lock.Lock(LockExclusive); err != nil {
		return &IOError{"CacheDir.clearDirty: lock", err}
	}
	defer c.lock.Unlock()
	if _, err := c.lock.f.WriteAt([]byte{0}, 0); err != nil {
		return &IOError{"CacheDir.clearDirty: write", err}
	}
	if c.cfg.SyncWrites {
		if err := c.lock.f.Sync(); err != nil {
			return &IOError{"CacheDir.clearDirty: sync", err}
		}
	}
	return nil
}

// dirty reports the last-written state of the dirty marker.
func (c *CacheDir) dirty() (bool, error) {
	if err := c.lock.Lock(LockShared); err != nil {
		return false, &IOError{"CacheDir.dirty: lock", err}
	}
	defer c.lock.Unlock()
	var b [1]byte
	n, err := c.lock.f.ReadAt(b[:], 0)
	if n == 0 || err != nil {
		return false, nil // freshly created marker: not dirty
	}
	return b[0] == 1, nil
}

// Close releases the cache directory's lock handle and root.
func (c *CacheDir) Close() error {
	f := c.lock.f
	c.lock.setFile(nil)
	if err := f.Close(); err != nil {
		return &IOError{"CacheDir.Close: lock file", err}
	}
	return c.root.Close()
}
