// Shared in-memory HprofSource fake used across scenario tests: a
// small object graph built by hand, with synthetic shallow sizes and
// class assignments, standing in for a real HPROF dump parser.
package reachability

import "path/filepath"

type fakeObject struct {
	id         ObjectId
	class      ClassId
	isClass    bool
	shallow    uint64
	refs       []OutgoingRef
	fileOffset uint64
}

// fakeGraph is a hand-built object graph implementing HprofSource.
type fakeGraph struct {
	objects []fakeObject // index 0 unused; ObjectIndex i -> objects[i]
	roots   []ObjectId
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{objects: []fakeObject{{}}} // reserve index 0
}

// add appends an object and returns its 1-based parse-order index.
func (g *fakeGraph) add(id ObjectId, shallow uint64, refs ...OutgoingRef) ObjectIndex {
	g.objects = append(g.objects, fakeObject{id: id, shallow: shallow, refs: refs, fileOffset: uint64(len(g.objects)) * 64})
	return ObjectIndex(len(g.objects) - 1)
}

func (g *fakeGraph) addRoot(id ObjectId) { g.roots = append(g.roots, id) }

func (g *fakeGraph) Count() int64              { return int64(len(g.objects) - 1) }
func (g *fakeGraph) PointerWidth() PointerWidth { return PointerWidth64 }

func (g *fakeGraph) Objects(yield func(id ObjectId, fileOffset uint64) bool) {
	for i := 1; i < len(g.objects); i++ {
		if !yield(g.objects[i].id, g.objects[i].fileOffset) {
			return
		}
	}
}

func (g *fakeGraph) ShallowSize(index ObjectIndex) uint64 {
	return g.objects[index].shallow
}

func (g *fakeGraph) OutgoingReferences(index ObjectIndex) []OutgoingRef {
	return g.objects[index].refs
}

func (g *fakeGraph) ClassOf(index ObjectIndex) ClassId { return g.objects[index].class }
func (g *fakeGraph) IsClass(index ObjectIndex) bool     { return g.objects[index].isClass }
func (g *fakeGraph) Roots() []ObjectId                  { return g.roots }

func ref(id ObjectId) OutgoingRef     { return OutgoingRef{Target: id} }
func weakRef(id ObjectId) OutgoingRef { return OutgoingRef{Target: id, IsReferent: true} }

func openTestAnalysis(t testingT, g *fakeGraph) *Analysis {
	t.Helper()
	dir := t.TempDir()
	a, err := Open(g, filepath.Join(dir, "cache"), Config{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// testingT is the subset of *testing.T used by test helpers in this
// file, so helpers can live in a non-_test.go-only dependency chain if
// ever needed. In practice always satisfied by *testing.T.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
	TempDir() string
}
