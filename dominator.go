// Iterative intersection-based dominator computation (Cooper-Harvey-
// Kennedy-style), adapted to consume the multiple-parents stream and
// the ObjectTable's nearest-root pointers rather than a reverse
// postorder array in memory.
//
// Grounded on spec.md §4.5 directly. The "never recurse over the
// object graph" discipline mirrors the teacher's explicit-loop scans
// (jpl-au-folio/scan.go's scanBack/scanFwd); only the bounded,
// depth-log(n) binary-search recursion in that file is structurally
// similar to recursion at all, and this engine avoids even that,
// walking `currentDoms` chains with plain loops.
package reachability

// ParentLookup resolves the incoming references recorded on an object
// by NearestRootEngine: a single parent via RefPointer, or every
// parent via the ReferenceList chain when FlagHasRefList is set.
type ParentLookup struct {
	table   *ObjectTable
	refList *ReferenceList
}

// NewParentLookup wires a lookup over table/refList.
func NewParentLookup(table *ObjectTable, refList *ReferenceList) *ParentLookup {
	return &ParentLookup{table: table, refList: refList}
}

// Parents invokes yield for every recorded incoming reference of x,
// stopping early if yield returns false.
func (p *ParentLookup) Parents(x ObjectIndex, yield func(ObjectIndex) bool) {
	if !p.table.HasFlag(x, FlagHasRefList) {
		ref := p.table.RefPointer(x)
		if ref != 0 {
			yield(ObjectIndex(ref))
		}
		return
	}
	block := int32(p.table.RefPointer(x))
	p.refList.Iterate(block, func(v uint32) bool { return yield(ObjectIndex(v)) })
}

// dominatorBitset is a flat bitset over ObjectIndex, used for
// dirtySet/newDirtySet.
type dominatorBitset struct{ words []uint64 }

func newDominatorBitset(n int) *dominatorBitset {
	return &dominatorBitset{words: make([]uint64, (n/64)+1)}
}

func (b *dominatorBitset) set(i ObjectIndex) {
	w := int(i) / 64
	if w >= len(b.words) {
		grown := make([]uint64, w+1)
		copy(grown, b.words)
		b.words = grown
	}
	b.words[w] |= 1 << (uint(i) % 64)
}

func (b *dominatorBitset) has(i ObjectIndex) bool {
	w := int(i) / 64
	if w >= len(b.words) {
		return false
	}
	return b.words[w]&(1<<(uint(i)%64)) != 0
}

func (b *dominatorBitset) clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// DominatorEngine computes the immediate dominator of every multi-
// parent object reachable from the multiple-parents stream.
type DominatorEngine struct {
	table   *ObjectTable
	parents *ParentLookup
	doms    *DenseIntMap // ObjectIndex -> current dominator estimate (ObjectIndex, 0 = root)
	n       int

	// multiChildren maps a node to the multi-parent nodes that list it
	// as a parent, so step 6's "enqueue each multi-parent child of x"
	// can widen a pass without waiting for the next stream read.
	multiChildren map[ObjectIndex][]ObjectIndex

	// multi marks every node that appears in S (the multiple-parents
	// stream), i.e. every node whose initial dominator estimate is
	// absent rather than its nearest-root pointer.
	multi *dominatorBitset
}

// NewDominatorEngine wires the engine to its collaborators. n is the
// total object count (for sizing internal bitsets/maps).
func NewDominatorEngine(table *ObjectTable, parents *ParentLookup, n int) *DominatorEngine {
	return &DominatorEngine{table: table, parents: parents, doms: NewDenseIntMap(n + 1), n: n}
}

func (e *DominatorEngine) currentDom(x ObjectIndex) ObjectIndex {
	if v, ok := e.doms.Get(x); ok {
		return ObjectIndex(v)
	}
	if e.multi != nil && e.multi.has(x) {
		// Multi-parent node not yet assigned by this engine: its
		// RefPointer still holds a ReferenceList block index, not an
		// ObjectIndex, so it must not be used as a dominator estimate.
		// Absent is the correct initial value per the fixed-point setup.
		return 0
	}
	// Single-parent object: the nearest-root pointer NearestRootEngine
	// installed is already its correct immediate dominator.
	return ObjectIndex(e.table.RefPointer(x))
}

func (e *DominatorEngine) setDom(x, d ObjectIndex) {
	e.doms.Put(x, int64(d))
}

// intersect walks upward from a and b simultaneously along
// currentDoms, maintaining two visited sets, and returns the first
// node found on both chains, or 0 if a chain reaches a root (dom 0)
// without meeting the other.
func (e *DominatorEngine) intersect(a, b ObjectIndex) ObjectIndex {
	seenA := map[ObjectIndex]struct{}{a: {}}
	seenB := map[ObjectIndex]struct{}{b: {}}
	for {
		if a != 0 {
			if _, ok := seenB[a]; ok {
				return a
			}
		}
		if b != 0 {
			if _, ok := seenA[b]; ok {
				return b
			}
		}
		if a != 0 {
			if na := e.currentDom(a); na != a {
				a = na
				seenA[a] = struct{}{}
			} else {
				a = 0
			}
		}
		if b != 0 {
			if nb := e.currentDom(b); nb != b {
				b = nb
				seenB[b] = struct{}{}
			} else {
				b = 0
			}
		}
		if a == 0 && b == 0 {
			return 0
		}
	}
}

// buildMultiChildren scans s once to index, for every multi-parent
// node, which of its parents are themselves multi-parent nodes worth
// re-examining eagerly when their dominator changes.
func (e *DominatorEngine) buildMultiChildren(s *PagedIntStream) error {
	e.multiChildren = make(map[ObjectIndex][]ObjectIndex)
	e.multi = newDominatorBitset(e.n + 1)

	if err := s.Rewind(); err != nil {
		return err
	}
	for {
		v, err := s.Read()
		if err != nil {
			return err
		}
		if v == 0 {
			break
		}
		e.multi.set(ObjectIndex(v))
	}

	if err := s.Rewind(); err != nil {
		return err
	}
	for {
		v, err := s.Read()
		if err != nil {
			return err
		}
		if v == 0 {
			break
		}
		x := ObjectIndex(v)
		e.parents.Parents(x, func(p ObjectIndex) bool {
			if e.multi.has(p) {
				e.multiChildren[p] = append(e.multiChildren[p], x)
			}
			return true
		})
	}
	return s.Rewind()
}

// Run consumes S (the multiple-parents stream) and its reverse in
// alternation until the dirty-heuristic fixed point is reached,
// followed by one final "ignoreDirty" pass to catch entries the
// heuristic missed, then overwrites each multi-parent object's
// HAS_GC_ROOT pointer with its computed dominator.
func (e *DominatorEngine) Run(s *PagedIntStream) error {
	reversed, err := s.Reverse()
	if err != nil {
		return err
	}
	if err := e.buildMultiChildren(s); err != nil {
		return err
	}

	dirty := newDominatorBitset(e.n + 1)
	newDirty := newDominatorBitset(e.n + 1)
	processed := newDominatorBitset(e.n + 1)

	forward := true
	ignoreDirtyPass := false
	for {
		stream := s
		if !forward {
			stream = reversed
		}
		if err := stream.Rewind(); err != nil {
			return err
		}

		changed := false
		var additional []ObjectIndex

		for {
			v, err := stream.Read()
			if err != nil {
				return err
			}
			if v == 0 {
				for len(additional) > 0 {
					x := additional[0]
					additional = additional[1:]
					c, err := e.process(x, dirty, newDirty, processed, ignoreDirtyPass, &additional)
					if err != nil {
						return err
					}
					changed = changed || c
				}
				break
			}
			x := ObjectIndex(v)
			c, err := e.process(x, dirty, newDirty, processed, ignoreDirtyPass, &additional)
			if err != nil {
				return err
			}
			changed = changed || c
		}

		dirty, newDirty = newDirty, dirty
		newDirty.clear()

		if !changed {
			if ignoreDirtyPass {
				break
			}
			ignoreDirtyPass = true
		} else {
			ignoreDirtyPass = false
		}
		forward = !forward
	}

	return e.publish()
}

// process implements step 4-6 of §4.5 for a single entry x.
func (e *DominatorEngine) process(x ObjectIndex, dirty, newDirty, processed *dominatorBitset, ignoreDirty bool, additional *[]ObjectIndex) (bool, error) {
	oldDom := e.currentDom(x)

	shouldProcess := !processed.has(x) || dirty.has(x) || dirty.has(oldDom) || ignoreDirty
	if !shouldProcess {
		return false, nil
	}
	processed.set(x)

	var newDom ObjectIndex
	first := true
	e.parents.Parents(x, func(p ObjectIndex) bool {
		if first {
			newDom = p
			first = false
			return true
		}
		newDom = e.intersect(newDom, p)
		return true
	})
	if first {
		// no recorded parents: leave as-is (shouldn't happen for a
		// multi-parent entry, but fail safe rather than crash)
		return false, nil
	}

	if newDom == oldDom {
		return false, nil
	}
	e.setDom(x, newDom)
	if oldDom != 0 {
		newDirty.set(oldDom)
	}
	if newDom != 0 {
		newDirty.set(newDom)
	}

	// Widen this same pass: a multi-parent child of x may now resolve
	// to a different intersection once x's dominator estimate moves.
	*additional = append(*additional, e.multiChildren[x]...)

	return true, nil
}

// publish overwrites each processed object's HAS_GC_ROOT pointer with
// its computed dominator.
func (e *DominatorEngine) publish() error {
	for i := 1; i <= e.n; i++ {
		idx := ObjectIndex(i)
		if v, ok := e.doms.Get(idx); ok {
			e.table.SetRefPointer(idx, uint32(v))
		}
	}
	return nil
}
