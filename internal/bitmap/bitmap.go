// Package bitmap implements a compressed, sparse row-id set with the
// boolean algebra the filter executor needs — union, intersection,
// complement, cardinality — plus a copy-on-write wrapper so operators
// can hand out borrowed bitmaps from column indexes without callers
// accidentally mutating shared state.
package bitmap

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/standardbeagle/silo/internal/types"
)

// Bitmap is a compressed set of row ids. The zero value is not usable;
// construct with New or FromRows.
type Bitmap struct {
	rb *roaring.Bitmap
}

// New returns an empty Bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// FromRows builds a Bitmap containing exactly the given row ids.
func FromRows(rows ...types.RowID) *Bitmap {
	b := New()
	for _, r := range rows {
		b.Add(r)
	}
	return b
}

// Full returns a Bitmap containing every row id in [0, n).
func Full(n uint32) *Bitmap {
	b := New()
	if n > 0 {
		b.rb.AddRange(0, uint64(n))
	}
	return b
}

// Add inserts row into the bitmap.
func (b *Bitmap) Add(row types.RowID) {
	b.rb.Add(uint32(row))
}

// Remove deletes row from the bitmap, if present.
func (b *Bitmap) Remove(row types.RowID) {
	b.rb.Remove(uint32(row))
}

// Contains reports whether row is a member.
func (b *Bitmap) Contains(row types.RowID) bool {
	return b.rb.Contains(uint32(row))
}

// IsEmpty reports whether the bitmap has no members.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of members.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns an independent deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// ToArray returns the members in ascending order. Callers must not
// assume the slice is safe to mutate in place on future calls.
func (b *Bitmap) ToArray() []types.RowID {
	arr := b.rb.ToArray()
	rows := make([]types.RowID, len(arr))
	for i, v := range arr {
		rows[i] = types.RowID(v)
	}
	return rows
}

// Iterate calls fn for every member in ascending order, stopping early
// if fn returns false.
func (b *Bitmap) Iterate(fn func(types.RowID) bool) {
	it := b.rb.Iterator()
	for it.HasNext() {
		if !fn(types.RowID(it.Next())) {
			return
		}
	}
}

// Union returns a new Bitmap containing the members of a or b.
func Union(a, b *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring.Or(a.rb, b.rb)}
}

// Intersection returns a new Bitmap containing the members in both a and b.
func Intersection(a, b *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring.And(a.rb, b.rb)}
}

// Difference returns a new Bitmap containing members of a not in b.
func Difference(a, b *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring.AndNot(a.rb, b.rb)}
}

// Complement returns the members of [0, universe) not in b.
func (b *Bitmap) Complement(universe uint32) *Bitmap {
	out := b.rb.Clone()
	out.Flip(0, uint64(universe))
	return &Bitmap{rb: out}
}

// AndCardinality returns |a ∩ b| without materializing the intersection.
func AndCardinality(a, b *Bitmap) uint64 {
	return a.rb.AndCardinality(b.rb)
}

// FastUnion unions many bitmaps at once using roaring's batched
// algorithm, avoiding the pairwise allocation a fold of Union would do.
func FastUnion(bitmaps []*Bitmap) *Bitmap {
	if len(bitmaps) == 0 {
		return New()
	}
	rbs := make([]*roaring.Bitmap, len(bitmaps))
	for i, bm := range bitmaps {
		rbs[i] = bm.rb
	}
	return &Bitmap{rb: roaring.FastOr(rbs...)}
}

// CopyOnWriteBitmap wraps a bitmap that may be borrowed (shared, owned
// by a column index) and defers cloning until the first mutation.
type CopyOnWriteBitmap struct {
	shared *Bitmap // borrowed; never mutated directly
	owned  *Bitmap // present once a write has happened
}

// Borrow wraps a shared bitmap without copying it.
func Borrow(shared *Bitmap) *CopyOnWriteBitmap {
	return &CopyOnWriteBitmap{shared: shared}
}

// Own wraps a bitmap the caller already owns exclusively; no clone is
// ever needed for it.
func Own(owned *Bitmap) *CopyOnWriteBitmap {
	return &CopyOnWriteBitmap{owned: owned}
}

// View returns the current bitmap for read-only use. The caller must not
// mutate the returned Bitmap in place.
func (c *CopyOnWriteBitmap) View() *Bitmap {
	if c.owned != nil {
		return c.owned
	}
	return c.shared
}

// mutable returns a bitmap this wrapper is free to mutate in place,
// cloning the shared bitmap on first use.
func (c *CopyOnWriteBitmap) mutable() *Bitmap {
	if c.owned == nil {
		c.owned = c.shared.Clone()
	}
	return c.owned
}

// AddInPlace inserts row, cloning the underlying bitmap on first write.
func (c *CopyOnWriteBitmap) AddInPlace(row types.RowID) {
	c.mutable().Add(row)
}

// RemoveInPlace deletes row, cloning the underlying bitmap on first write.
func (c *CopyOnWriteBitmap) RemoveInPlace(row types.RowID) {
	c.mutable().Remove(row)
}

// IntersectInPlace replaces the view with its intersection with other.
func (c *CopyOnWriteBitmap) IntersectInPlace(other *Bitmap) {
	c.owned = Intersection(c.View(), other)
}

// UnionInPlace replaces the view with its union with other.
func (c *CopyOnWriteBitmap) UnionInPlace(other *Bitmap) {
	c.owned = Union(c.View(), other)
}
