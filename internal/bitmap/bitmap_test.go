package bitmap

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/standardbeagle/silo/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUnionIntersection(t *testing.T) {
	a := FromRows(1, 2, 3)
	b := FromRows(2, 3, 4)

	u := Union(a, b)
	if u.Cardinality() != 4 {
		t.Fatalf("Union cardinality = %d, want 4", u.Cardinality())
	}

	i := Intersection(a, b)
	if i.Cardinality() != 2 || !i.Contains(2) || !i.Contains(3) {
		t.Fatalf("Intersection = %v, want {2,3}", i.ToArray())
	}
}

func TestDifference(t *testing.T) {
	a := FromRows(1, 2, 3)
	b := FromRows(2)

	d := Difference(a, b)
	want := []types.RowID{1, 3}
	got := d.ToArray()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Difference = %v, want %v", got, want)
	}
}

func TestComplement(t *testing.T) {
	a := FromRows(1, 3)
	c := a.Complement(5)

	for _, want := range []types.RowID{0, 2, 4} {
		if !c.Contains(want) {
			t.Errorf("Complement missing row %d", want)
		}
	}
	if c.Contains(1) || c.Contains(3) {
		t.Errorf("Complement should not contain original members")
	}
}

func TestAndCardinality(t *testing.T) {
	a := FromRows(1, 2, 3, 4)
	b := FromRows(3, 4, 5, 6)
	if got := AndCardinality(a, b); got != 2 {
		t.Errorf("AndCardinality = %d, want 2", got)
	}
}

func TestFastUnion(t *testing.T) {
	bitmaps := []*Bitmap{
		FromRows(1, 2),
		FromRows(3, 4),
		FromRows(2, 5),
	}
	u := FastUnion(bitmaps)
	if u.Cardinality() != 5 {
		t.Fatalf("FastUnion cardinality = %d, want 5", u.Cardinality())
	}

	if empty := FastUnion(nil); !empty.IsEmpty() {
		t.Errorf("FastUnion(nil) should be empty")
	}
}

func TestCopyOnWriteDoesNotMutateShared(t *testing.T) {
	shared := FromRows(1, 2, 3)
	cow := Borrow(shared)

	cow.AddInPlace(4)

	if shared.Contains(4) {
		t.Fatalf("shared bitmap was mutated by AddInPlace")
	}
	if !cow.View().Contains(4) {
		t.Fatalf("copy-on-write view missing added row")
	}
	if cow.View().Cardinality() != 4 {
		t.Fatalf("cardinality = %d, want 4", cow.View().Cardinality())
	}
}

func TestCopyOnWriteOwnNeverClones(t *testing.T) {
	owned := FromRows(1)
	cow := Own(owned)
	cow.AddInPlace(2)

	if !owned.Contains(2) {
		t.Fatalf("Own wrapper should mutate the owned bitmap directly")
	}
}

func TestFull(t *testing.T) {
	f := Full(4)
	if f.Cardinality() != 4 {
		t.Fatalf("Full(4) cardinality = %d, want 4", f.Cardinality())
	}
	for _, r := range []types.RowID{0, 1, 2, 3} {
		if !f.Contains(r) {
			t.Errorf("Full(4) missing row %d", r)
		}
	}
	if Full(0).Cardinality() != 0 {
		t.Errorf("Full(0) should be empty")
	}
}
