// End-to-end scenario tests covering spec.md §8's testable properties:
// a singleton graph, a simple chain, a diamond (multi-parent) shape, a
// cycle, weak-reference exclusion, and top-retainers tie-breaking.
package reachability

import "testing"

func TestAnalysisSingletonGraph(t *testing.T) {
	g := newFakeGraph()
	g.add(100, 48)
	g.addRoot(100)

	a := openTestAnalysis(t, g)

	root, err := a.QueryNearestRoot(100)
	if err != nil {
		t.Fatalf("QueryNearestRoot: %v", err)
	}
	if root != 100 {
		t.Fatalf("nearest root of singleton = %d, want 100", root)
	}

	if _, err := a.QueryImmediateDominator(100); err != ErrNotFound {
		t.Fatalf("dominator of a root should be ErrNotFound, got %v", err)
	}

	size, err := a.QueryRetainedSize(100)
	if err != nil {
		t.Fatalf("QueryRetainedSize: %v", err)
	}
	if size != 48 {
		t.Fatalf("retained size = %d, want 48", size)
	}
}

func TestAnalysisChain(t *testing.T) {
	g := newFakeGraph()
	// root(1) -> a(2) -> b(3) -> c(4), single parent throughout.
	g.add(1, 10, ref(2))
	g.add(2, 20, ref(3))
	g.add(3, 30, ref(4))
	g.add(4, 40)
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	for _, id := range []ObjectId{2, 3, 4} {
		root, err := a.QueryNearestRoot(id)
		if err != nil {
			t.Fatalf("QueryNearestRoot(%d): %v", id, err)
		}
		if root != 1 {
			t.Fatalf("nearest root of %d = %d, want 1", id, root)
		}
	}

	dom, err := a.QueryImmediateDominator(4)
	if err != nil {
		t.Fatalf("QueryImmediateDominator(4): %v", err)
	}
	if dom != 3 {
		t.Fatalf("dominator of 4 = %d, want 3", dom)
	}

	size, err := a.QueryRetainedSize(2)
	if err != nil {
		t.Fatalf("QueryRetainedSize(2): %v", err)
	}
	if size != 20+30+40 {
		t.Fatalf("retained size of 2 = %d, want %d", size, 20+30+40)
	}
}

func TestAnalysisDiamond(t *testing.T) {
	g := newFakeGraph()
	// root(1) -> a(2), root(1) -> b(3), a(2) -> c(4), b(3) -> c(4).
	g.add(1, 10, ref(2), ref(3))
	g.add(2, 20, ref(4))
	g.add(3, 30, ref(4))
	g.add(4, 40)
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	dom, err := a.QueryImmediateDominator(4)
	if err != nil {
		t.Fatalf("QueryImmediateDominator(4): %v", err)
	}
	if dom != 1 {
		t.Fatalf("dominator of diamond-bottom 4 = %d, want 1 (the common ancestor)", dom)
	}

	sizeA, err := a.QueryRetainedSize(2)
	if err != nil {
		t.Fatalf("QueryRetainedSize(2): %v", err)
	}
	if sizeA != 20 {
		t.Fatalf("retained size of 2 = %d, want 20 (does not exclusively dominate 4)", sizeA)
	}

	sizeRoot, err := a.QueryRetainedSize(1)
	if err != nil {
		t.Fatalf("QueryRetainedSize(1): %v", err)
	}
	if sizeRoot != 10+20+30+40 {
		t.Fatalf("retained size of root = %d, want %d", sizeRoot, 10+20+30+40)
	}
}

func TestAnalysisCycleDoesNotHang(t *testing.T) {
	g := newFakeGraph()
	// root(1) -> a(2) -> b(3) -> a(2): a cycle below the root.
	g.add(1, 10, ref(2))
	g.add(2, 20, ref(3))
	g.add(3, 30, ref(2))
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	root, err := a.QueryNearestRoot(3)
	if err != nil {
		t.Fatalf("QueryNearestRoot(3): %v", err)
	}
	if root != 1 {
		t.Fatalf("nearest root of 3 = %d, want 1", root)
	}

	dom, err := a.QueryImmediateDominator(3)
	if err != nil {
		t.Fatalf("QueryImmediateDominator(3): %v", err)
	}
	if dom != 2 {
		t.Fatalf("dominator of 3 = %d, want 2", dom)
	}
}

func TestAnalysisWeakReferenceNotTraversed(t *testing.T) {
	g := newFakeGraph()
	// root(1) --weak--> x(2). Nothing else points to x: it must never
	// be reached by the BFS even though it is present in the object
	// table (the parser emitted it as a live object with a dump
	// offset; only the traversal excludes it).
	g.add(1, 10, weakRef(2))
	g.add(2, 99)
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	if _, err := a.QueryNearestRoot(2); err != ErrNotFound {
		t.Fatalf("QueryNearestRoot(2) via weak-only reference = %v, want ErrNotFound", err)
	}
}

func TestAnalysisTopRetainersTieBreak(t *testing.T) {
	g := newFakeGraph()
	// Three siblings with identical shallow size (so identical retained
	// size as graph leaves): ties must resolve ObjectId ascending. The
	// root necessarily retains more than any one of them (it
	// accumulates all three), so requesting every entry exercises both
	// "largest first" and the ascending tie-break among the equal-sized
	// children in one query.
	g.add(1, 10, ref(3), ref(2), ref(4))
	g.add(2, 50)
	g.add(3, 50)
	g.add(4, 50)
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	top, err := a.QueryTopRetainers(4)
	if err != nil {
		t.Fatalf("QueryTopRetainers: %v", err)
	}
	if len(top) != 4 {
		t.Fatalf("len(top) = %d, want 4", len(top))
	}
	if top[0].ID != 1 || top[0].RetainedBytes != 160 {
		t.Fatalf("top[0] = %+v, want {ID:1 RetainedBytes:160}", top[0])
	}
	var ids []ObjectId
	for _, r := range top[1:] {
		if r.RetainedBytes != 50 {
			t.Fatalf("unexpected retained size in tie set: %+v", r)
		}
		ids = append(ids, r.ID)
	}
	if ids[0] != 2 || ids[1] != 3 || ids[2] != 4 {
		t.Fatalf("tie-break order = %v, want [2 3 4]", ids)
	}
}

func TestAnalysisClassEdgeDedupedAcrossInstances(t *testing.T) {
	g := newFakeGraph()
	// root(1) -> three instances (2,3,4) of class 5, a class object
	// (idxClass, isClass=true); each instance also references the
	// class object directly, as HPROF dumps often do.
	idxClass := ObjectIndex(5)
	g.add(1, 10, ref(2), ref(3), ref(4))
	g.add(2, 20, ref(ObjectId(idxClass)))
	g.add(3, 20, ref(ObjectId(idxClass)))
	g.add(4, 20, ref(ObjectId(idxClass)))
	g.add(ObjectId(idxClass), 8)
	g.objects[idxClass].isClass = true
	g.objects[2].class = 5
	g.objects[3].class = 5
	g.objects[4].class = 5
	g.addRoot(1)

	a := openTestAnalysis(t, g)

	if err := a.computeGCRoots(); err != nil {
		t.Fatalf("computeGCRoots: %v", err)
	}
	if a.table.HasFlag(idxClass, FlagHasRefList) {
		t.Fatalf("class object picked up a second parent from a sibling instance's class edge")
	}
	root, err := a.QueryNearestRoot(ObjectId(idxClass))
	if err != nil {
		t.Fatalf("QueryNearestRoot(class): %v", err)
	}
	if root != 1 {
		t.Fatalf("nearest root of class object = %d, want 1", root)
	}
}

func TestAnalysisHasAncestorOfClass(t *testing.T) {
	g := newFakeGraph()
	g.add(1, 10, ref(2))
	idx2 := g.add(2, 20, ref(3))
	g.add(3, 30)
	g.addRoot(1)
	g.objects[idx2].class = 777

	a := openTestAnalysis(t, g)

	ok, err := a.QueryHasAncestorOfClass(3, 777)
	if err != nil {
		t.Fatalf("QueryHasAncestorOfClass: %v", err)
	}
	if !ok {
		t.Fatalf("expected 3's dominator chain to include an instance of class 777")
	}

	ok, err = a.QueryHasAncestorOfClass(3, 9999)
	if err != nil {
		t.Fatalf("QueryHasAncestorOfClass: %v", err)
	}
	if ok {
		t.Fatalf("did not expect class 9999 on 3's dominator chain")
	}
}
