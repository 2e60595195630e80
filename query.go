// Read-only query facade over a computed Analysis: resolve an
// ObjectId's nearest GC root, immediate dominator, retained size, top
// retainers, and ancestor-class membership.
//
// Grounded on the teacher's Get (get.go): blockRead-guarded lookup,
// translate a caller-facing key into an internal position, read, and
// always release the read lock via defer.
package reachability

// QueryNearestRoot returns the ObjectId of the nearest GC root reached
// from id during the BFS pass.
func (a *Analysis) QueryNearestRoot(id ObjectId) (ObjectId, error) {
	if err := a.computeGCRoots(); err != nil {
		return 0, err
	}
	if err := a.blockQuery(); err != nil {
		return 0, err
	}
	defer a.mu.RUnlock()

	index, ok := a.table.IndexOf(id)
	if !ok {
		return 0, ErrNotFound
	}
	if !a.table.HasFlag(index, FlagHasGCRoot) {
		return 0, ErrNotFound // unreached: not part of the live object graph
	}
	rootIdx := a.chaseToRoot(index)
	return a.idOf(rootIdx)
}

// chaseToRoot walks single-parent links up from index until it reaches
// a self-referential record (a GC root). Only valid before
// DominatorEngine has overwritten RefPointer for multi-parent objects;
// callers needing nearest-root after computeDominators should instead
// rely on QueryImmediateDominator's chain, since at that point a
// multi-parent object's RefPointer is its dominator, not its nearest
// root's. Resolved roots are memoized in rootCache, since the same
// deep object is often queried repeatedly.
func (a *Analysis) chaseToRoot(index ObjectIndex) ObjectIndex {
	if cached, ok := a.rootCache.Get(int32(index)); ok {
		return ObjectIndex(cached)
	}
	cur := index
	for {
		if cached, ok := a.rootCache.Get(int32(cur)); ok {
			cur = ObjectIndex(cached)
			break
		}
		if a.table.HasFlag(cur, FlagHasRefList) {
			cur = ObjectIndex(a.refList.First(int32(a.table.RefPointer(cur))))
			continue
		}
		next := ObjectIndex(a.table.RefPointer(cur))
		if next == cur || next == 0 {
			break
		}
		cur = next
	}
	a.rootCache.Put(int32(index), int32(cur))
	return cur
}

// QueryImmediateDominator returns the ObjectId of id's immediate
// dominator. Requires computeDominators to have run.
func (a *Analysis) QueryImmediateDominator(id ObjectId) (ObjectId, error) {
	if err := a.computeDominators(); err != nil {
		return 0, err
	}
	if err := a.blockQuery(); err != nil {
		return 0, err
	}
	defer a.mu.RUnlock()

	index, ok := a.table.IndexOf(id)
	if !ok {
		return 0, ErrNotFound
	}
	domIdx := ObjectIndex(a.table.RefPointer(index))
	if domIdx == index {
		return 0, ErrNotFound // a GC root has no dominator
	}
	return a.idOf(domIdx)
}

// QueryRetainedSize returns id's retained size in bytes. Requires
// computeDominators to have run.
func (a *Analysis) QueryRetainedSize(id ObjectId) (uint64, error) {
	if err := a.computeDominators(); err != nil {
		return 0, err
	}
	if err := a.blockQuery(); err != nil {
		return 0, err
	}
	defer a.mu.RUnlock()

	index, ok := a.table.IndexOf(id)
	if !ok {
		return 0, ErrNotFound
	}
	return a.table.RetainedSize(index), nil
}

// QueryTopRetainers returns the n objects with the largest retained
// size. Requires computeDominators to have run. n <= 0 uses
// Config.TopNDefault.
func (a *Analysis) QueryTopRetainers(n int) ([]Retainer, error) {
	if err := a.computeDominators(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = a.cfg.TopNDefault
	}
	if err := a.blockQuery(); err != nil {
		return nil, err
	}
	defer a.mu.RUnlock()

	top := NewTopN(n)
	for i := 1; i <= a.n; i++ {
		index := ObjectIndex(i)
		top.Offer(a.ids[index], a.table.RetainedSize(index))
	}
	return top.Results(), nil
}

// QueryHasAncestorOfClass reports whether any object on id's dominator
// chain (including id itself) is an instance of class c. Requires
// computeDominators to have run.
func (a *Analysis) QueryHasAncestorOfClass(id ObjectId, c ClassId) (bool, error) {
	if err := a.computeDominators(); err != nil {
		return false, err
	}
	if err := a.blockQuery(); err != nil {
		return false, err
	}
	defer a.mu.RUnlock()

	index, ok := a.table.IndexOf(id)
	if !ok {
		return false, ErrNotFound
	}
	return a.ancestor.HasAncestorOfClass(index, c), nil
}

// idOf resolves an ObjectIndex back to its ObjectId via the reverse
// mapping captured once during Open.
func (a *Analysis) idOf(index ObjectIndex) (ObjectId, error) {
	if index == 0 || int(index) >= len(a.ids) {
		return 0, ErrNotFound
	}
	return a.ids[index], nil
}
