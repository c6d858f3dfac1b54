package phylo

import (
	"testing"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/types"
)

func TestParseNewickBasicTopology(t *testing.T) {
	tree, err := ParseNewick("test.nwk", []byte("(A,B,(C,D)E)F;"))
	if err != nil {
		t.Fatalf("ParseNewick failed: %v", err)
	}
	if tree.NumNodes() != 6 {
		t.Fatalf("NumNodes() = %d, want 6", tree.NumNodes())
	}
	root := tree.Root()
	if tree.ID(root) != "F" {
		t.Errorf("root id = %q, want F", tree.ID(root))
	}

	e, ok := tree.NodeByID("E")
	if !ok {
		t.Fatalf("node E not found")
	}
	descendants := tree.Descendants(e)
	if len(descendants) != 3 {
		t.Fatalf("Descendants(E) = %v, want 3 nodes (E, C, D)", descendants)
	}
	names := map[string]bool{}
	for _, d := range descendants {
		names[tree.ID(d)] = true
	}
	for _, want := range []string{"E", "C", "D"} {
		if !names[want] {
			t.Errorf("Descendants(E) missing %q, got %v", want, names)
		}
	}
}

func TestParseNewickWithBranchLengths(t *testing.T) {
	tree, err := ParseNewick("test.nwk", []byte("(A:0.1,B:0.25)root:0.0;"))
	if err != nil {
		t.Fatalf("ParseNewick failed: %v", err)
	}
	if tree.NumNodes() != 3 {
		t.Fatalf("NumNodes() = %d, want 3", tree.NumNodes())
	}
	if tree.ID(tree.Root()) != "root" {
		t.Errorf("root id = %q, want root", tree.ID(tree.Root()))
	}
}

func TestParseNewickUnnamedInternalNodesGetSyntheticNames(t *testing.T) {
	tree, err := ParseNewick("test.nwk", []byte("(A,B);"))
	if err != nil {
		t.Fatalf("ParseNewick failed: %v", err)
	}
	root := tree.Root()
	if tree.ID(root) == "" {
		t.Errorf("unnamed root should get a synthetic id")
	}
}

func TestParseNewickRejectsUnbalancedParens(t *testing.T) {
	if _, err := ParseNewick("test.nwk", []byte("(A,B;")); err == nil {
		t.Fatalf("expected an error for unbalanced parentheses")
	}
}

func TestParseAuspiceJSONBasicTopology(t *testing.T) {
	doc := []byte(`{
		"tree": {
			"name": "root",
			"children": [
				{"name": "A"},
				{"name": "clade1", "children": [
					{"name": "B"},
					{"name": "C"}
				]}
			]
		}
	}`)
	tree, err := ParseAuspiceJSON("test.json", doc)
	if err != nil {
		t.Fatalf("ParseAuspiceJSON failed: %v", err)
	}
	if tree.NumNodes() != 5 {
		t.Fatalf("NumNodes() = %d, want 5", tree.NumNodes())
	}
	clade1, ok := tree.NodeByID("clade1")
	if !ok {
		t.Fatalf("node clade1 not found")
	}
	descendants := tree.Descendants(clade1)
	if len(descendants) != 3 {
		t.Fatalf("Descendants(clade1) = %v, want 3 nodes", descendants)
	}
}

func TestParseAuspiceJSONRejectsMissingRoot(t *testing.T) {
	if _, err := ParseAuspiceJSON("test.json", []byte(`{}`)); err == nil {
		t.Fatalf("expected an error for a document with no root tree node")
	}
}

func TestBuildIndexLookup(t *testing.T) {
	tree, err := ParseNewick("test.nwk", []byte("(A,(B,C)D)root;"))
	if err != nil {
		t.Fatalf("ParseNewick failed: %v", err)
	}
	rows := map[string]types.RowID{"A": 0, "B": 1, "C": 2, "D": 3, "root": 4}
	idx := BuildIndex(tree, func(n NodeID) *bitmap.Bitmap {
		row, ok := rows[tree.ID(n)]
		if !ok {
			return bitmap.New()
		}
		return bitmap.FromRows(row)
	})

	d, ok := idx.Lookup("D")
	if !ok {
		t.Fatalf("Lookup(D) not found")
	}
	if d.Cardinality() != 3 {
		t.Errorf("Lookup(D) cardinality = %d, want 3 (D, B, C)", d.Cardinality())
	}
	for _, row := range []types.RowID{1, 2, 3} {
		if !d.Contains(row) {
			t.Errorf("Lookup(D) missing row %d", row)
		}
	}

	if _, ok := idx.Lookup("Ghost"); ok {
		t.Errorf("Lookup(Ghost) should not be found")
	}
}
