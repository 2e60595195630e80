// Tests covering the Manifest round trip, the cache directory's dirty
// marker, and the object-diagnostics facade.
package reachability

import (
	"path/filepath"
	"testing"
)

func TestOpenReturnsErrDirtyAfterUncleanShutdown(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	cache, err := OpenCacheDir(cacheDir, Config{}.withDefaults())
	if err != nil {
		t.Fatalf("OpenCacheDir: %v", err)
	}
	if err := cache.setDirty(); err != nil {
		t.Fatalf("setDirty: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("cache.Close: %v", err)
	}

	g := newFakeGraph()
	g.add(1, 10)
	g.addRoot(1)

	if _, err := Open(g, cacheDir, Config{}, nil); err != ErrDirty {
		t.Fatalf("Open after unclean shutdown = %v, want ErrDirty", err)
	}
}

func TestAnalysisResumesFromManifest(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	g := newFakeGraph()
	g.add(1, 10, ref(2))
	g.add(2, 20)
	g.addRoot(1)

	a, err := Open(g, cacheDir, Config{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.QueryRetainedSize(2); err != nil {
		t.Fatalf("QueryRetainedSize: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	resumed, err := Open(g, cacheDir, Config{}, nil)
	if err != nil {
		t.Fatalf("Open (resume): %v", err)
	}
	defer resumed.Close()

	if !resumed.gcRootsDone || !resumed.dominatorsDone {
		t.Fatalf("resumed analysis should have pre-fired completion flags, got gcRootsDone=%v dominatorsDone=%v",
			resumed.gcRootsDone, resumed.dominatorsDone)
	}

	size, err := resumed.QueryRetainedSize(2)
	if err != nil {
		t.Fatalf("QueryRetainedSize after resume: %v", err)
	}
	if size != 20 {
		t.Fatalf("retained size after resume = %d, want 20", size)
	}

	root, err := resumed.QueryNearestRoot(2)
	if err != nil {
		t.Fatalf("QueryNearestRoot after resume: %v", err)
	}
	if root != 1 {
		t.Fatalf("nearest root after resume = %d, want 1", root)
	}
}

func TestAnalysisDoesNotResumeAcrossObjectCountChange(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	g := newFakeGraph()
	g.add(1, 10)
	g.addRoot(1)

	a, err := Open(g, cacheDir, Config{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.QueryRetainedSize(1); err != nil {
		t.Fatalf("QueryRetainedSize: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	g2 := newFakeGraph()
	g2.add(1, 10, ref(2))
	g2.add(2, 20)
	g2.addRoot(1)

	a2, err := Open(g2, cacheDir, Config{}, nil)
	if err != nil {
		t.Fatalf("Open with a different object count: %v", err)
	}
	defer a2.Close()

	if a2.gcRootsDone || a2.dominatorsDone {
		t.Fatalf("a mismatched manifest must not be treated as resumable")
	}
	size, err := a2.QueryRetainedSize(1)
	if err != nil {
		t.Fatalf("QueryRetainedSize: %v", err)
	}
	if size != 10+20 {
		t.Fatalf("retained size = %d, want %d", size, 10+20)
	}
}

func TestAnalysisDiagnoseObject(t *testing.T) {
	g := newFakeGraph()
	g.add(1, 10, ref(2))
	idx2 := g.add(2, 20)
	g.addRoot(1)
	g.objects[idx2].class = 42

	a := openTestAnalysis(t, g)

	d, err := a.DiagnoseObject(2)
	if err != nil {
		t.Fatalf("DiagnoseObject: %v", err)
	}
	if d.ID != 2 || d.ClassID != 42 || !d.HasGCRoot || d.Dominator != 1 || d.RetainedBytes != 20 {
		t.Fatalf("unexpected diagnostic snapshot: %+v", d)
	}

	blob, err := a.DiagnoseObjectJSON(2)
	if err != nil {
		t.Fatalf("DiagnoseObjectJSON: %v", err)
	}
	decoded, err := decodeDiag(blob)
	if err != nil {
		t.Fatalf("decodeDiag: %v", err)
	}
	if decoded != d {
		t.Fatalf("decodeDiag(encodeDiag(d)) = %+v, want %+v", decoded, d)
	}
}
