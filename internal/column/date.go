package column

import (
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/types"
)

// DateColumn stores one day-granularity date per row. Sorted tracks
// whether every chunk appended so far arrived in non-decreasing date
// order; range predicates over a sorted column can binary-search
// instead of scanning.
type DateColumn struct {
	mu      sync.RWMutex
	values  []types.Date
	null    *bitmap.Bitmap
	sorted  bool
	lastVal types.Date
	anyRows bool
}

// NewDateColumn creates an empty DateColumn. It starts optimistically
// sorted; the first out-of-order insert clears the flag permanently.
func NewDateColumn() *DateColumn {
	return &DateColumn{null: bitmap.New(), sorted: true}
}

func (c *DateColumn) Reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cap(c.values)-len(c.values) < n {
		grown := make([]types.Date, len(c.values), len(c.values)+n)
		copy(grown, c.values)
		c.values = grown
	}
}

// Insert appends value and returns its row id.
func (c *DateColumn) Insert(value types.Date) types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(len(c.values))
	if c.anyRows && value < c.lastVal {
		c.sorted = false
	}
	c.lastVal = value
	c.anyRows = true
	c.values = append(c.values, value)
	if value == types.NullDate {
		c.null.Add(row)
	}
	return row
}

// InsertNull appends a null row. A null is stored as the reserved zero
// value and takes part in the sortedness check as that value, so a null
// after any non-null date clears the sorted flag.
func (c *DateColumn) InsertNull() types.RowID {
	return c.Insert(types.NullDate)
}

// Value returns the row's date and whether it is non-null.
func (c *DateColumn) Value(row types.RowID) (types.Date, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.values[row]
	return v, v != types.NullDate
}

// IsNull reports whether row is null.
func (c *DateColumn) IsNull(row types.RowID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null.Contains(row)
}

// IsSorted reports whether every insert so far arrived in
// non-decreasing date order.
func (c *DateColumn) IsSorted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sorted
}

// NullBitmap returns the rows that are null.
func (c *DateColumn) NullBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null
}

// Len returns the number of rows, including nulls.
func (c *DateColumn) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Between returns the rows whose date is in [from, to], using binary
// search over the stored vector when IsSorted, otherwise a full scan.
// Null rows are never included, even when from <= 0 <= to.
func (c *DateColumn) Between(from, to types.Date) *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := bitmap.New()
	if c.sorted {
		lo := lowerBoundDate(c.values, from)
		hi := upperBoundDate(c.values, to)
		for i := lo; i < hi; i++ {
			if c.values[i] != types.NullDate {
				out.Add(types.RowID(i))
			}
		}
		return out
	}
	for i, v := range c.values {
		if v != types.NullDate && v >= from && v <= to {
			out.Add(types.RowID(i))
		}
	}
	return out
}

func lowerBoundDate(values []types.Date, target types.Date) int {
	lo, hi := 0, len(values)
	for lo < hi {
		mid := (lo + hi) / 2
		if values[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func upperBoundDate(values []types.Date, target types.Date) int {
	lo, hi := 0, len(values)
	for lo < hi {
		mid := (lo + hi) / 2
		if values[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
