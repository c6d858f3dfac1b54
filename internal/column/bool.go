package column

import (
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/types"
)

// BoolColumn partitions [0, N) into three disjoint bitmaps instead of a
// per-row byte vector: true_bitmap, false_bitmap, null_bitmap.
type BoolColumn struct {
	mu    sync.RWMutex
	count int
	tr    *bitmap.Bitmap
	fa    *bitmap.Bitmap
	null  *bitmap.Bitmap
}

func NewBoolColumn() *BoolColumn {
	return &BoolColumn{tr: bitmap.New(), fa: bitmap.New(), null: bitmap.New()}
}

func (c *BoolColumn) Reserve(int) {} // nothing to preallocate; bitmaps grow as needed

// Insert appends value and returns its row id.
func (c *BoolColumn) Insert(value bool) types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(c.count)
	c.count++
	if value {
		c.tr.Add(row)
	} else {
		c.fa.Add(row)
	}
	return row
}

// InsertNull appends a null row.
func (c *BoolColumn) InsertNull() types.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := types.RowID(c.count)
	c.count++
	c.null.Add(row)
	return row
}

// Value returns the row's value and whether it is non-null.
func (c *BoolColumn) Value(row types.RowID) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.tr.Contains(row):
		return true, true
	case c.fa.Contains(row):
		return false, true
	default:
		return false, false
	}
}

func (c *BoolColumn) IsNull(row types.RowID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null.Contains(row)
}

// TrueBitmap, FalseBitmap, NullBitmap expose the three partitions
// directly, for use as filter results with no scan.
func (c *BoolColumn) TrueBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tr
}

func (c *BoolColumn) FalseBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fa
}

func (c *BoolColumn) NullBitmap() *bitmap.Bitmap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.null
}

func (c *BoolColumn) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}
