package bvgraph

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/offsets"
)

func testConfig() Config {
	return Config{
		WindowSize:        3,
		MaxRefCount:       3,
		MinIntervalLength: 4,
		Endianness:        bitio.LSB,
		Codes:             DefaultCodes,
		Policy:            PolicyExhaustive,
	}
}

// buildGraphFiles builds succ (succ[v] is node v's successor list),
// writes the .graph/.ef/.properties trio into a fresh temp directory,
// and returns the basename Open expects.
func buildGraphFiles(t *testing.T, succ [][]uint64, cfg Config) string {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "g")

	var buf bytes.Buffer
	b, err := NewBuilder(&buf, cfg)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	for _, s := range succ {
		if err := b.Push(s); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	offs, props, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if err := os.WriteFile(base+".graph", buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write .graph: %v", err)
	}

	ef := offsets.Build(offs)
	if err := os.WriteFile(base+".ef", ef.Marshal(), 0o644); err != nil {
		t.Fatalf("write .ef: %v", err)
	}

	var propBuf bytes.Buffer
	if err := props.Save(&propBuf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(base+".properties", propBuf.Bytes(), 0o644); err != nil {
		t.Fatalf("write .properties: %v", err)
	}
	return base
}

func checkSequential(t *testing.T, g *Graph, want [][]uint64) {
	t.Helper()
	it := g.Iterator()
	for i, w := range want {
		v, succ, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next() at %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Next() ended early at %d", i)
		}
		if v != uint64(i) {
			t.Fatalf("Next() node = %d, want %d", v, i)
		}
		if diff := cmp.Diff(w, succ); diff != "" {
			t.Errorf("node %d successors (-want +got):\n%s", i, diff)
		}
	}
	if _, _, ok, err := it.Next(); ok || err != nil {
		t.Fatalf("Next() after last node: ok=%v err=%v", ok, err)
	}
}

func checkRandomAccess(t *testing.T, g *Graph, want [][]uint64) {
	t.Helper()
	for i, w := range want {
		got, err := g.Successors(uint64(i))
		if err != nil {
			t.Fatalf("Successors(%d): %v", i, err)
		}
		if diff := cmp.Diff(w, got); diff != "" {
			t.Errorf("Successors(%d) (-want +got):\n%s", i, diff)
		}
		d, err := g.Outdegree(uint64(i))
		if err != nil {
			t.Fatalf("Outdegree(%d): %v", i, err)
		}
		if d != uint64(len(w)) {
			t.Errorf("Outdegree(%d) = %d, want %d", i, d, len(w))
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	base := buildGraphFiles(t, nil, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	if g.Nodes() != 0 {
		t.Fatalf("Nodes() = %d, want 0", g.Nodes())
	}
	if _, _, ok, err := g.Iterator().Next(); ok || err != nil {
		t.Fatalf("Next() on empty graph: ok=%v err=%v", ok, err)
	}
}

func TestAllIsolatedNodes(t *testing.T) {
	want := [][]uint64{{}, {}, {}, {}}
	base := buildGraphFiles(t, want, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	checkSequential(t, g, want)
	checkRandomAccess(t, g, want)
}

func TestThreeCycle(t *testing.T) {
	want := [][]uint64{{1}, {2}, {0}}
	base := buildGraphFiles(t, want, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	checkSequential(t, g, want)
	checkRandomAccess(t, g, want)
}

func TestReferenceCopy(t *testing.T) {
	// Node 1 repeats node 0's list with one extra successor, an ideal
	// candidate for reference compression.
	want := [][]uint64{
		{2, 5, 9, 20},
		{2, 5, 9, 13, 20},
		{1, 2},
	}
	base := buildGraphFiles(t, want, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	checkSequential(t, g, want)
	checkRandomAccess(t, g, want)
}

func TestIntervalRun(t *testing.T) {
	want := [][]uint64{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 50},
	}
	base := buildGraphFiles(t, want, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	checkSequential(t, g, want)
	checkRandomAccess(t, g, want)
}

func TestChainDepthLimit(t *testing.T) {
	// A strictly growing chain, each node a superset of the previous:
	// with MaxRefCount bounding the chain, later nodes must eventually
	// fall back to a shallower or absent reference rather than exceed
	// it, and decoding must still recover the exact lists.
	cfg := testConfig()
	cfg.MaxRefCount = 2
	cfg.WindowSize = 5
	var want [][]uint64
	var cur []uint64
	for i := 0; i < 10; i++ {
		cur = append(append([]uint64{}, cur...), uint64(i*3))
		want = append(want, append([]uint64{}, cur...))
	}
	base := buildGraphFiles(t, want, cfg)
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	checkSequential(t, g, want)
	checkRandomAccess(t, g, want)
}

func TestRandomAccessWithoutIndexFails(t *testing.T) {
	want := [][]uint64{{1}, {0}}
	base := buildGraphFiles(t, want, testConfig())
	if err := os.Remove(base + ".ef"); err != nil {
		t.Fatalf("remove .ef: %v", err)
	}
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	if _, err := g.Successors(0); err == nil {
		t.Fatal("Successors() without .ef: expected error")
	}
	checkSequential(t, g, want)
}

func TestEndiannessMismatch(t *testing.T) {
	want := [][]uint64{{1}, {0}}
	base := buildGraphFiles(t, want, testConfig()) // written as bitio.LSB
	_, err := Open(base, bitio.MSB)
	cerr, ok := err.(*CodecError)
	if !ok || cerr.Kind != KindEndiannessMismatch {
		t.Fatalf("Open() with mismatched endianness: err=%v, want KindEndiannessMismatch", err)
	}
}

func TestNodeOutOfRange(t *testing.T) {
	want := [][]uint64{{0}}
	base := buildGraphFiles(t, want, testConfig())
	g, err := Open(base, bitio.LSB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()
	_, err = g.Successors(5)
	cerr, ok := err.(*CodecError)
	if !ok || cerr.Kind != KindNodeOutOfRange {
		t.Fatalf("Successors(5) error = %v, want KindNodeOutOfRange", err)
	}
}
