// Bounded min-heap over (ObjectId, retainedSize) pairs, with the
// weakest kept entry at the root, used to answer
// "top-N retainers" queries without sorting the whole object set.
//
// Grounded on spec.md §4.7; container/heap is the idiomatic Go fit for
// a bounded priority queue and appears nowhere in the teacher (which
// never needs a top-K), so this is adopted from the wider ecosystem
// convention rather than grown from teacher code.
package reachability

import "container/heap"

// Retainer is one entry in a top-N result: an object and its retained
// size.
type Retainer struct {
	ID            ObjectId
	RetainedBytes uint64
}

// topNHeap is a min-heap over Retainer, so the smallest of the current
// top N sits at the root and is the cheap thing to evict.
type topNHeap []Retainer

func (h topNHeap) Len() int { return len(h) }

// Less orders by retained size ascending, then by ObjectId descending on
// ties. The root is always the weakest-qualifying entry; the reversed
// tie-break here is what makes Results' pop-into-descending-slots fill
// come out ObjectId-ascending on ties (see Results).
func (h topNHeap) Less(i, j int) bool {
	if h[i].RetainedBytes != h[j].RetainedBytes {
		return h[i].RetainedBytes < h[j].RetainedBytes
	}
	return h[i].ID > h[j].ID
}

func (h topNHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *topNHeap) Push(x any) { *h = append(*h, x.(Retainer)) }

func (h *topNHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopN accumulates candidates and reports the n with the largest
// retained size, ObjectId ascending on ties, sorted descending by
// retained size.
type TopN struct {
	n int
	h topNHeap
}

// NewTopN returns an accumulator bounded to the top n entries.
func NewTopN(n int) *TopN {
	if n < 1 {
		n = 1
	}
	return &TopN{n: n, h: make(topNHeap, 0, n)}
}

// Offer considers one candidate, keeping it only if it belongs in the
// current top N.
func (t *TopN) Offer(id ObjectId, retained uint64) {
	cand := Retainer{ID: id, RetainedBytes: retained}
	if len(t.h) < t.n {
		heap.Push(&t.h, cand)
		return
	}
	if cand.RetainedBytes > t.h[0].RetainedBytes ||
		(cand.RetainedBytes == t.h[0].RetainedBytes && cand.ID < t.h[0].ID) {
		t.h[0] = cand
		heap.Fix(&t.h, 0)
	}
}

// Results returns the accumulated top entries sorted descending by
// retained size, ObjectId ascending on ties.
func (t *TopN) Results() []Retainer {
	out := make([]Retainer, len(t.h))
	copy(out, t.h)
	// sort descending by retained size, ascending ObjectId on ties: pop
	// the heap (ascending order) into the tail of a fresh slice.
	sorted := make([]Retainer, len(out))
	tmp := make(topNHeap, len(out))
	copy(tmp, out)
	for i := len(sorted) - 1; i >= 0; i-- {
		sorted[i] = heap.Pop(&tmp).(Retainer)
	}
	return sorted
}
