// Bottom-up retained-size rollup over the dominator tree, seeded from
// the leaves stream NearestRootEngine recorded and driven by a
// pending-children counter per node so the rollup never recurses over
// the tree.
//
// Grounded on spec.md §4.6 directly; the counter-gated worklist mirrors
// the teacher's level-drained frontier idiom in scan.go, applied here
// to a dominator tree instead of a BFS frontier over raw references.
package reachability

// RetainedSizeEngine computes, for every live object, the sum of
// shallow sizes of everything it exclusively keeps alive: itself plus
// every object whose immediate dominator is it, directly or
// transitively.
type RetainedSizeEngine struct {
	table *ObjectTable
	refs  ReferenceEnumerator
	n     int
}

// NewRetainedSizeEngine wires the engine to its collaborators. n is the
// total object count, matching DominatorEngine's n.
func NewRetainedSizeEngine(table *ObjectTable, refs ReferenceEnumerator, n int) *RetainedSizeEngine {
	return &RetainedSizeEngine{table: table, refs: refs, n: n}
}

// Run computes retained sizes for every live object. leaves is
// NearestRootEngine.Leaves: objects whose BFS visit reached no new
// object, which have zero dominator-tree children and so seed the worklist
// immediately rather than waiting to be discovered by the pending-count
// scan below.
func (e *RetainedSizeEngine) Run(leaves *PagedIntStream) error {
	dom := make([]int32, e.n+1)
	pending := make([]int32, e.n+1)

	for i := 1; i <= e.n; i++ {
		idx := ObjectIndex(i)
		e.table.SetRetainedSize(idx, e.refs.ShallowSize(idx))
		d := int32(e.table.RefPointer(idx))
		dom[i] = d
		if d != 0 && int(d) != i {
			pending[d]++
		}
	}

	seeded := make([]bool, e.n+1)
	queue := make([]ObjectIndex, 0, e.n/4+1)

	if err := leaves.Rewind(); err != nil {
		return err
	}
	for {
		v, err := leaves.Read()
		if err != nil {
			return err
		}
		if v == 0 {
			break
		}
		idx := ObjectIndex(v)
		if !seeded[idx] {
			seeded[idx] = true
			queue = append(queue, idx)
		}
	}

	for i := 1; i <= e.n; i++ {
		if pending[i] == 0 && !seeded[i] {
			seeded[i] = true
			queue = append(queue, ObjectIndex(i))
		}
	}

	for head := 0; head < len(queue); head++ {
		x := queue[head]
		d := dom[x]
		if d == 0 || int(d) == int(x) {
			continue // a GC root: nothing above it to roll into
		}
		parent := ObjectIndex(d)
		e.table.AddRetainedSize(parent, e.table.RetainedSize(x))
		pending[parent]--
		if pending[parent] == 0 && !seeded[parent] {
			seeded[parent] = true
			queue = append(queue, parent)
		}
	}
	return nil
}
