package insertion

import (
	"testing"

	"github.com/standardbeagle/silo/internal/types"
)

func seedInsertions(idx *Index) {
	idx.Insert("main", 25701, "ACCA", 0)
	idx.Insert("main", 25701, "CCG", 1)
	idx.Insert("main", 25701, "TTACAT,ACCA", 2)
	idx.Insert("main", 25701, "AGCTGTTCAG", 3)
}

func TestSearchSeedScenarioDotStarCC(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	got, err := idx.Search("main", 25701, ".*CC.*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := map[uint32]bool{0: true, 1: true, 2: true}
	if got.Cardinality() != uint64(len(want)) {
		t.Fatalf("Search(.*CC.*) cardinality = %d, want %d (got %v)", got.Cardinality(), len(want), got.ToArray())
	}
	for row := range want {
		if !got.Contains(types.RowID(row)) {
			t.Errorf("Search(.*CC.*) missing row %d", row)
		}
	}
	if got.Contains(types.RowID(3)) {
		t.Errorf("Search(.*CC.*) should not match row 3 (AGCTGTTCAG)")
	}
}

func TestSearchSeedScenarioNoMatch(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	got, err := idx.Search("main", 25701, ".*TTT.*AAA.*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("Search(.*TTT.*AAA.*) = %v, want empty", got.ToArray())
	}
}

func TestSearchUnknownPositionReturnsEmpty(t *testing.T) {
	idx := New()
	got, err := idx.Search("main", 999, ".*CC.*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("Search on unseen position should be empty")
	}
}

func TestSearchWithNoUsableLiteralRunFallsBackToFullScan(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	got, err := idx.Search("main", 25701, ".*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got.Cardinality() != 4 {
		t.Errorf("Search(.*) cardinality = %d, want 4", got.Cardinality())
	}
}

func TestExactFilter(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	bm, ok := idx.ExactFilter("main", 25701, "CCG")
	if !ok {
		t.Fatalf("ExactFilter(CCG) not found")
	}
	if bm.Cardinality() != 1 || !bm.Contains(types.RowID(1)) {
		t.Errorf("ExactFilter(CCG) = %v, want {1}", bm.ToArray())
	}

	if _, ok := idx.ExactFilter("main", 25701, "NOPE"); ok {
		t.Errorf("ExactFilter(NOPE) should not be found")
	}
}

func TestSearchRejectsUnsupportedSyntax(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	if _, err := idx.Search("main", 25701, "(AC|CC)"); err == nil {
		t.Errorf("alternation should be rejected by the documented subset")
	}
}

func TestSearchUsesTrigramPrefilterForLongLiteralRun(t *testing.T) {
	idx := New()
	seedInsertions(idx)

	got, err := idx.Search("main", 25701, ".*ACCA.*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := map[uint32]bool{0: true, 2: true}
	if got.Cardinality() != uint64(len(want)) {
		t.Fatalf("Search(.*ACCA.*) cardinality = %d, want %d (got %v)", got.Cardinality(), len(want), got.ToArray())
	}
	for row := range want {
		if !got.Contains(types.RowID(row)) {
			t.Errorf("Search(.*ACCA.*) missing row %d", row)
		}
	}
}

func TestSearchCharacterClass(t *testing.T) {
	idx := New()
	idx.Insert("main", 10, "AAA", 0)
	idx.Insert("main", 10, "ACA", 1)
	idx.Insert("main", 10, "AGA", 2)
	idx.Insert("main", 10, "ATA", 3)

	got, err := idx.Search("main", 10, "A[CG]A")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got.Cardinality() != 2 || !got.Contains(types.RowID(1)) || !got.Contains(types.RowID(2)) {
		t.Errorf("Search(A[CG]A) = %v, want {1,2}", got.ToArray())
	}
}
