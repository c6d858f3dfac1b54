// Package column implements the per-ColumnType partition storage: a
// dense per-row vector plus whatever inverted index that column type
// needs to answer filter predicates without a row scan.
package column

import (
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/dictionary"
	"github.com/standardbeagle/silo/internal/types"
)

// IndexedString stores one ValueID per row plus an inverted map from
// ValueID to the bitmap of rows holding it. The Dictionary is shared
// across every partition of the table, so the same string always maps
// to the same ValueID everywhere.
type IndexedString struct {
	dict *dictionary.Dictionary

	mu        sync.RWMutex
	valueIDs  []types.ValueID
	inverted  map[types.ValueID]*bitmap.CopyOnWriteBitmap
	nullRows  *bitmap.Bitmap
}

// NewIndexedString creates an empty IndexedString partition backed by
// the given (table-shared) dictionary.
func NewIndexedString(dict *dictionary.Dictionary) *IndexedString {
	return &IndexedString{
		dict:     dict,
		inverted: make(map[types.ValueID]*bitmap.CopyOnWriteBitmap),
		nullRows: bitmap.New(),
	}
}

// Reserve preallocates the row vector for n additional rows.
func (c *IndexedString) Reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cap(c.valueIDs)-len(c.valueIDs) < n {
		grown := make([]types.ValueID, len(c.valueIDs), len(c.valueIDs)+n)
		copy(grown, c.valueIDs)
		c.valueIDs = grown
	}
}

// Insert appends value, allocating a new ValueID in the shared
// dictionary if value has never been seen, and returns the row id
// assigned to it.
func (c *IndexedString) Insert(value string) types.RowID {
	id := c.dict.GetOrCreate(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(len(c.valueIDs))
	c.valueIDs = append(c.valueIDs, id)
	c.addToInvertedLocked(id, row)
	return row
}

// InsertNull appends a null row, returning its row id.
func (c *IndexedString) InsertNull() types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(len(c.valueIDs))
	c.valueIDs = append(c.valueIDs, types.NullValueID)
	c.nullRows.Add(row)
	return row
}

func (c *IndexedString) addToInvertedLocked(id types.ValueID, row types.RowID) {
	entry, ok := c.inverted[id]
	if !ok {
		entry = bitmap.Own(bitmap.New())
		c.inverted[id] = entry
	}
	entry.AddInPlace(row)
}

// Value returns the row's value and whether it is non-null.
func (c *IndexedString) Value(row types.RowID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id := c.valueIDs[row]
	if id == types.NullValueID {
		return "", false
	}
	s, _ := c.dict.Value(id)
	return s, true
}

// IsNull reports whether row is null.
func (c *IndexedString) IsNull(row types.RowID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nullRows.Contains(row)
}

// Filter returns the bitmap of rows holding value, or (nil, false) if
// that value was never inserted into this partition.
func (c *IndexedString) Filter(value string) (*bitmap.Bitmap, bool) {
	id, ok := c.dict.Lookup(value)
	if !ok {
		return nil, false
	}
	return c.FilterValueID(id)
}

// FilterValueID is Filter keyed directly by an already-resolved ValueID.
func (c *IndexedString) FilterValueID(id types.ValueID) (*bitmap.Bitmap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.inverted[id]
	if !ok {
		return nil, false
	}
	return entry.View(), true
}

// NullBitmap returns the rows that are null.
func (c *IndexedString) NullBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nullRows
}

// Len returns the number of rows, including nulls.
func (c *IndexedString) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.valueIDs)
}

// ValueIDAt returns the raw ValueID stored for row, including
// types.NullValueID for a null row. Used by PangoLineageIndexedString
// and persistence to avoid a second dictionary round trip.
func (c *IndexedString) ValueIDAt(row types.RowID) types.ValueID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valueIDs[row]
}

// Dictionary returns the shared dictionary backing this column.
func (c *IndexedString) Dictionary() *dictionary.Dictionary {
	return c.dict
}
