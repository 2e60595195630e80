// Top-level lifecycle type: wires the HPROF-parser collaborator to the
// ObjectTable/ReferenceList side stores and the three engines, and
// exposes idempotent, state-gated compute entry points plus the query
// facade built on top of them.
//
// Grounded on the teacher's DB (db.go): atomic.Int32 state +
// sync.Cond-gated blockRead/blockWrite around an OS-level directory
// lock, generalized from "readers vs. compaction/rehash" to "queries
// vs. the one-time GC-roots/dominator computation passes".
package reachability

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State constants for Analysis concurrency control.
const (
	StateAll      = 0 // queries allowed, no compute in progress
	StateBuilding = 1 // a compute pass holds the directory lock; queries block
	StateDone     = 2 // at least one compute pass has completed; queries allowed
	StateClosed   = 3 // Analysis closed
)

// HprofSource is the external HPROF-parser contract (§6b/§6c): object
// enumeration in parse order plus the per-object reference/shallow-size
// facts the engines consume, and the GC root set.
type HprofSource interface {
	ReferenceEnumerator
	GCRootSet

	// Count returns N, the total number of live objects.
	Count() int64
	// PointerWidth returns the dump's file-offset width.
	PointerWidth() PointerWidth
	// Objects enumerates every object in parse order, yielding its
	// ObjectId and HPROF file offset. Iteration order fixes
	// ObjectIndex assignment: the k-th yield gets ObjectIndex(k+1).
	Objects(yield func(id ObjectId, fileOffset uint64) bool)
}

// Analysis is the main entry point: one cache directory, one HPROF
// source, and the computed state built from them.
type Analysis struct {
	cfg    Config
	source HprofSource
	log    *zap.SugaredLogger

	cache   *CacheDir
	table   *ObjectTable
	refList *ReferenceList
	parents *ParentLookup

	nearest  *NearestRootEngine
	dominate *DominatorEngine
	retain   *RetainedSizeEngine
	ancestor *AncestorClassQuery

	// rootCache memoizes chaseToRoot's walk, keyed by the queried
	// ObjectIndex and valued by its resolved root ObjectIndex. Sized by
	// Config.RootCacheSize; a pure speedup, never consulted for
	// correctness.
	rootCache *BoundedLRUCache

	n   int
	ids []ObjectId // ObjectIndex -> ObjectId, index 0 unused

	state atomic.Int32
	cond  *sync.Cond
	mu    sync.RWMutex

	gcRootsOnce    sync.Once
	gcRootsErr     error
	gcRootsDone    bool
	dominatorsOnce sync.Once
	dominatorsErr  error
	dominatorsDone bool
}

// Open builds (or rehydrates) the ObjectTable from source inside
// cacheDir and returns an Analysis ready for computeGCRoots. If
// cacheDir's dirty marker shows a previous run was interrupted, Open
// returns ErrDirty instead of silently recomputing over untrustworthy
// state: callers must remove the directory and retry. Otherwise, a
// manifest from a previously fully-completed run against the same
// object count and pointer width lets Open skip straight to queries
// without redoing the BFS/dominator/retained-size passes.
func Open(source HprofSource, cacheDir string, cfg Config, logger *zap.SugaredLogger) (*Analysis, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = nopLogger()
	}

	cache, err := OpenCacheDir(cacheDir, cfg)
	if err != nil {
		return nil, err
	}
	wasDirty, err := cache.dirty()
	if err != nil {
		cache.Close()
		return nil, err
	}
	if wasDirty {
		cache.Close()
		return nil, ErrDirty
	}

	n := int(source.Count())
	manifestPath, err := cache.cacheFile("manifest.bin")
	if err != nil {
		cache.Close()
		return nil, err
	}
	manifest, manifestErr := LoadManifest(manifestPath)
	resume := manifestErr == nil &&
		manifest.ObjectCount == int64(n) &&
		manifest.PointerWidth == source.PointerWidth() &&
		manifest.GCRootsComputed && manifest.DominatorsComputed && manifest.RetainedSizesComputed

	if err := cache.setDirty(); err != nil {
		cache.Close()
		return nil, err
	}

	tablePath, err := cache.cacheFile("objects.table")
	if err != nil {
		cache.Close()
		return nil, err
	}
	var table *ObjectTable
	if resume {
		table, err = OpenObjectTable(tablePath)
	} else {
		table, err = CreateObjectTable(tablePath, int64(n), source.PointerWidth())
	}
	if err != nil {
		cache.Close()
		return nil, err
	}

	ids := make([]ObjectId, n+1)
	index := ObjectIndex(0)
	source.Objects(func(id ObjectId, fileOffset uint64) bool {
		index++
		table.SetFileOffset(index, id, fileOffset)
		if int(index) < len(ids) {
			ids[index] = id
		}
		return true
	})

	refListPath, err := cache.cacheFile("refs.list")
	if err != nil {
		table.Close()
		cache.Close()
		return nil, err
	}
	var refList *ReferenceList
	if resume {
		refList, err = OpenReferenceList(refListPath, manifest.RefListMapped, manifest.RefListNext, cfg.BlockCacheSize, cfg.HashAlgorithm)
	} else {
		refList, err = NewReferenceList(refListPath, n/4+1, cfg.BlockCacheSize, cfg.HashAlgorithm)
	}
	if err != nil {
		table.Close()
		cache.Close()
		return nil, err
	}

	parents := NewParentLookup(table, refList)

	a := &Analysis{
		cfg:       cfg,
		source:    source,
		log:       logger,
		cache:     cache,
		table:     table,
		refList:   refList,
		parents:   parents,
		nearest:   NewNearestRootEngine(table, source, refList, cache, cfg),
		dominate:  NewDominatorEngine(table, parents, n),
		retain:    NewRetainedSizeEngine(table, source, n),
		ancestor:  NewAncestorClassQuery(table, source),
		rootCache: NewBoundedLRUCache(cfg.RootCacheSize),
		n:         n,
		ids:       ids,
		cond:      sync.NewCond(&sync.Mutex{}),
	}
	if resume {
		a.gcRootsDone = true
		a.gcRootsOnce.Do(func() {})
		a.dominatorsDone = true
		a.dominatorsOnce.Do(func() {})
	}
	return a, nil
}

// computeGCRoots runs NearestRootEngine once. Safe to call repeatedly;
// subsequent calls return the first call's error (or nil) without
// redoing the BFS.
func (a *Analysis) computeGCRoots() error {
	a.gcRootsOnce.Do(func() {
		if err := a.enterBuilding(); err != nil {
			a.gcRootsErr = err
			return
		}
		defer a.leaveBuilding()

		a.log.Infow("computing nearest gc roots", "objects", a.n)
		if err := a.nearest.Run(a.source); err != nil {
			a.gcRootsErr = err
			return
		}
		a.gcRootsDone = true
	})
	return a.gcRootsErr
}

// computeDominators runs computeGCRoots (idempotent) followed by
// DominatorEngine and RetainedSizeEngine. Safe to call repeatedly.
func (a *Analysis) computeDominators() error {
	if err := a.computeGCRoots(); err != nil {
		return err
	}
	a.dominatorsOnce.Do(func() {
		if err := a.enterBuilding(); err != nil {
			a.dominatorsErr = err
			return
		}
		defer a.leaveBuilding()

		a.log.Infow("computing dominators", "objects", a.n)
		if err := a.dominate.Run(a.nearest.MultipleParents); err != nil {
			a.dominatorsErr = err
			return
		}
		a.log.Infow("computing retained sizes", "objects", a.n)
		if err := a.retain.Run(a.nearest.Leaves); err != nil {
			a.dominatorsErr = err
			return
		}
		a.dominatorsDone = true

		// Both streams have been consumed for the last time; release
		// their backing temp files.
		for _, s := range []*PagedIntStream{a.nearest.MultipleParents, a.nearest.Leaves} {
			if err := s.Delete(); err != nil {
				a.log.Warnw("releasing stream", "err", err)
			}
		}
	})
	return a.dominatorsErr
}

// enterBuilding blocks until the Analysis is idle, then marks it
// Building under the cache directory's exclusive lock.
func (a *Analysis) enterBuilding() error {
	if a.state.Load() == StateClosed {
		return ErrClosed
	}
	if err := a.cache.lock.TryLock(LockExclusive); err != nil {
		if err == ErrAlreadyRunning {
			return err
		}
		return &IOError{"Analysis.enterBuilding", err}
	}
	a.cond.L.Lock()
	for a.state.Load() == StateBuilding {
		if a.state.Load() == StateClosed {
			a.cond.L.Unlock()
			a.cache.lock.Unlock()
			return ErrClosed
		}
		a.cond.Wait()
	}
	a.state.Store(StateBuilding)
	a.mu.Lock()
	a.cond.L.Unlock()
	return nil
}

func (a *Analysis) leaveBuilding() {
	a.mu.Unlock()
	a.cond.L.Lock()
	a.state.Store(StateDone)
	a.cond.Broadcast()
	a.cond.L.Unlock()
	a.cache.lock.Unlock()
}

// blockQuery waits out any in-progress compute pass, then takes a read
// lock for the duration of a query.
func (a *Analysis) blockQuery() error {
	if a.state.Load() == StateClosed {
		return ErrClosed
	}
	a.cond.L.Lock()
	for a.state.Load() == StateBuilding {
		a.cond.Wait()
	}
	if a.state.Load() == StateClosed {
		a.cond.L.Unlock()
		return ErrClosed
	}
	a.mu.RLock()
	a.cond.L.Unlock()
	return nil
}

// Close saves a manifest of the completed work, releases every mapped
// region, and clears the cache directory's dirty marker so a later
// Open can resume from it.
func (a *Analysis) Close() error {
	a.cond.L.Lock()
	a.state.Store(StateClosed)
	a.cond.Broadcast()
	a.cond.L.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error

	mapped, next := a.refList.Watermarks()
	manifest := Manifest{
		ObjectCount:           int64(a.n),
		PointerWidth:          a.table.PointerWidth(),
		GCRootsComputed:       a.gcRootsDone,
		DominatorsComputed:    a.dominatorsDone,
		RetainedSizesComputed: a.dominatorsDone,
		RefListMapped:         mapped,
		RefListNext:           next,
		Config:                a.cfg,
	}
	if manifestPath, err := a.cache.cacheFile("manifest.bin"); err != nil {
		firstErr = err
	} else if err := SaveManifest(manifestPath, manifest, a.cfg.SyncWrites); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := a.cache.clearDirty(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.refList.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.table.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
