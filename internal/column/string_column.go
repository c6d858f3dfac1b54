package column

import (
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/germanstring"
	"github.com/standardbeagle/silo/internal/types"
)

// StringColumn stores one Umbra-style String descriptor per row. Unlike
// IndexedString it has no inverted index: equality and ordering
// predicates over free-text string columns fall back to a row scan
// accelerated by the descriptor's inline prefix comparison.
type StringColumn struct {
	registry *germanstring.Registry

	mu     sync.RWMutex
	values []germanstring.String
	null   *bitmap.Bitmap
}

// NewStringColumn creates an empty StringColumn.
func NewStringColumn() *StringColumn {
	return &StringColumn{
		registry: germanstring.NewRegistry(),
		null:     bitmap.New(),
	}
}

// Reserve preallocates the row vector for n additional rows.
func (c *StringColumn) Reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cap(c.values)-len(c.values) < n {
		grown := make([]germanstring.String, len(c.values), len(c.values)+n)
		copy(grown, c.values)
		c.values = grown
	}
}

// Insert appends value and returns the row id assigned to it.
func (c *StringColumn) Insert(value string) types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(len(c.values))
	c.values = append(c.values, germanstring.New(value, c.registry))
	return row
}

// InsertNull appends a null row.
func (c *StringColumn) InsertNull() types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(len(c.values))
	c.values = append(c.values, germanstring.String{})
	c.null.Add(row)
	return row
}

// Value returns the row's value and whether it is non-null.
func (c *StringColumn) Value(row types.RowID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.null.Contains(row) {
		return "", false
	}
	return c.values[row].Value(c.registry), true
}

// IsNull reports whether row is null.
func (c *StringColumn) IsNull(row types.RowID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null.Contains(row)
}

// Filter scans the column for rows equal to value. There is no inverted
// index for free-text strings; FastCompare skips the registry lookup
// for most non-matching rows.
func (c *StringColumn) Filter(value string) *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := bitmap.New()
	for row, desc := range c.values {
		if c.null.Contains(types.RowID(row)) {
			continue
		}
		switch cmp := desc.FastCompare(value); {
		case cmp == germanstring.Equal:
			out.Add(types.RowID(row))
		case cmp == germanstring.Indeterminate && desc.Value(c.registry) == value:
			out.Add(types.RowID(row))
		}
	}
	return out
}

// NullBitmap returns the rows that are null.
func (c *StringColumn) NullBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null
}

// Len returns the number of rows, including nulls.
func (c *StringColumn) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
