package dictionary

import (
	"sync"
	"testing"

	"github.com/standardbeagle/silo/internal/types"
)

func TestGetOrCreateInternsOnce(t *testing.T) {
	d := New()
	id1 := d.GetOrCreate("Germany")
	id2 := d.GetOrCreate("Germany")
	if id1 != id2 {
		t.Fatalf("GetOrCreate returned different ids for the same string: %d vs %d", id1, id2)
	}
	if id1 == types.NullValueID {
		t.Fatalf("a real string must never get the NULL ValueID")
	}
}

func TestValueRoundTrip(t *testing.T) {
	d := New()
	id := d.GetOrCreate("Switzerland")
	got, ok := d.Value(id)
	if !ok || got != "Switzerland" {
		t.Fatalf("Value(%d) = (%q, %v), want (\"Switzerland\", true)", id, got, ok)
	}
}

func TestLookupMissing(t *testing.T) {
	d := New()
	if _, ok := d.Lookup("nowhere"); ok {
		t.Fatalf("Lookup should fail for a never-interned string")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := New()
	d.GetOrCreate("A")
	d.GetOrCreate("B")
	d.GetOrCreate("A")

	snap := d.Snapshot()
	restored := LoadSnapshot(snap)

	if restored.Len() != d.Len() {
		t.Fatalf("restored.Len() = %d, want %d", restored.Len(), d.Len())
	}
	idA, ok := restored.Lookup("A")
	if !ok {
		t.Fatalf("restored dictionary lost value A")
	}
	originalIDA, _ := d.Lookup("A")
	if idA != originalIDA {
		t.Fatalf("restored id for A = %d, want %d", idA, originalIDA)
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	ids := make([]types.ValueID, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = d.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent GetOrCreate produced divergent ids")
		}
	}
}
