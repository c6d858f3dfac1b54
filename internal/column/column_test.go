package column

import (
	"math"
	"testing"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/dictionary"
	"github.com/standardbeagle/silo/internal/types"
)

func TestIndexedStringFilter(t *testing.T) {
	dict := dictionary.New()
	c := NewIndexedString(dict)

	c.Insert("Germany")
	c.Insert("Switzerland")
	c.Insert("Germany")

	bm, ok := c.Filter("Germany")
	if !ok {
		t.Fatalf("Filter(Germany) not found")
	}
	if bm.Cardinality() != 2 || !bm.Contains(0) || !bm.Contains(2) {
		t.Errorf("Filter(Germany) = %v, want {0,2}", bm.ToArray())
	}

	if _, ok := c.Filter("France"); ok {
		t.Errorf("Filter(France) should report not-found for an unseen value")
	}
}

func TestIndexedStringNull(t *testing.T) {
	dict := dictionary.New()
	c := NewIndexedString(dict)
	c.Insert("A")
	row := c.InsertNull()

	if !c.IsNull(row) {
		t.Errorf("row %d should be null", row)
	}
	if _, ok := c.Value(row); ok {
		t.Errorf("Value() should report false for a null row")
	}
}

func TestIndexedStringSharedDictionary(t *testing.T) {
	dict := dictionary.New()
	p0 := NewIndexedString(dict)
	p1 := NewIndexedString(dict)

	p0.Insert("Germany")
	p1.Insert("Germany")

	id0 := p0.ValueIDAt(0)
	id1 := p1.ValueIDAt(0)
	if id0 != id1 {
		t.Errorf("same string across partitions got different ids: %d vs %d", id0, id1)
	}
}

func TestStringColumnFilter(t *testing.T) {
	c := NewStringColumn()
	c.Insert("short")
	c.Insert("hCoV-19/Germany/BW-RKI-I-123456/2021")
	c.Insert("hCoV-19/Germany/BW-RKI-I-999999/2021")

	got := c.Filter("hCoV-19/Germany/BW-RKI-I-123456/2021")
	if got.Cardinality() != 1 || !got.Contains(1) {
		t.Errorf("Filter = %v, want {1}", got.ToArray())
	}
}

func TestDateColumnSortedBetween(t *testing.T) {
	c := NewDateColumn()
	for _, d := range []types.Date{100, 200, 300, 400} {
		c.Insert(d)
	}
	if !c.IsSorted() {
		t.Fatalf("column should be sorted")
	}
	got := c.Between(150, 350)
	want := []types.RowID{1, 2}
	if got.Cardinality() != 2 || !got.Contains(want[0]) || !got.Contains(want[1]) {
		t.Errorf("Between(150,350) = %v, want %v", got.ToArray(), want)
	}
}

func TestDateColumnUnsortedFallsBackToScan(t *testing.T) {
	c := NewDateColumn()
	c.Insert(300)
	c.Insert(100)
	if c.IsSorted() {
		t.Fatalf("column should not be sorted after a decreasing insert")
	}
	got := c.Between(50, 150)
	if got.Cardinality() != 1 || !got.Contains(1) {
		t.Errorf("Between(50,150) = %v, want {1}", got.ToArray())
	}
}

func TestInt32ColumnNullSentinel(t *testing.T) {
	c := NewInt32Column()
	c.Insert(5)
	row := c.InsertNull()
	if !c.IsNull(row) {
		t.Errorf("row %d should be null via sentinel", row)
	}
	if c.values[row] != NullInt32 {
		t.Errorf("sentinel not stored")
	}
}

func TestInt32ColumnCompare(t *testing.T) {
	c := NewInt32Column()
	for _, v := range []int32{1, 5, 10, 15} {
		c.Insert(v)
	}
	got := c.Compare(CompareGreaterOrEqual, 10)
	if got.Cardinality() != 2 || !got.Contains(2) || !got.Contains(3) {
		t.Errorf("Compare(>=10) = %v, want {2,3}", got.ToArray())
	}
}

func TestFloat64ColumnNaNIsNull(t *testing.T) {
	c := NewFloat64Column()
	c.Insert(1.5)
	row := c.InsertNull()
	if !c.IsNull(row) {
		t.Errorf("row %d should be null", row)
	}
	if !math.IsNaN(c.values[row]) {
		t.Errorf("null row should store NaN")
	}
}

func TestBoolColumnPartitions(t *testing.T) {
	c := NewBoolColumn()
	c.Insert(true)
	c.Insert(false)
	c.InsertNull()

	if c.TrueBitmap().Cardinality() != 1 || !c.TrueBitmap().Contains(0) {
		t.Errorf("true bitmap = %v, want {0}", c.TrueBitmap().ToArray())
	}
	if c.FalseBitmap().Cardinality() != 1 || !c.FalseBitmap().Contains(1) {
		t.Errorf("false bitmap = %v, want {1}", c.FalseBitmap().ToArray())
	}
	if c.NullBitmap().Cardinality() != 1 || !c.NullBitmap().Contains(2) {
		t.Errorf("null bitmap = %v, want {2}", c.NullBitmap().ToArray())
	}
}

func TestPangoLineageIndexedStringDelegatesToLookup(t *testing.T) {
	dict := dictionary.New()
	c := NewPangoLineageIndexedString(dict)
	c.Insert("B.1.1.7")
	c.Insert("B.1.1.7.1")

	calledWith := types.ValueID(0)
	lookup := DescendantsLookup(func(id types.ValueID, mode RecombinantMode) (*bitmap.Bitmap, bool) {
		calledWith = id
		return nil, false
	})
	_, ok := c.FilterIncludingSublineages("B.1.1.7", RecombinantAlwaysFollow, lookup)
	if ok {
		t.Fatalf("lookup stub returns not-found")
	}
	if calledWith == 0 {
		t.Errorf("lookup should have been called with the resolved ValueID")
	}
}
