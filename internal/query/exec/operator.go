// Package exec implements Component L: the compiled operator tree and
// the per-partition executor. Compile turns an already-rewritten filter
// expression into an Operator tree bound to one partition's column
// indexes; Evaluate walks that tree into a single row-id bitmap.
package exec

import (
	"context"
	"sort"

	"github.com/standardbeagle/silo/internal/bitmap"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

// Operator is one node of a compiled, per-partition query plan.
// Evaluate must check ctx before doing any work, so a query past its
// deadline unwinds quickly instead of scanning a partition it will
// discard.
type Operator interface {
	Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error)
}

func checkDeadline(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return siloerrors.NewTimeoutError(operation)
	default:
		return nil
	}
}

// emptyOp always evaluates to the empty set.
type emptyOp struct{}

func (emptyOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Empty"); err != nil {
		return nil, err
	}
	return bitmap.Own(bitmap.New()), nil
}

// fullOp evaluates to every row in [0, n).
type fullOp struct{ n int }

func (o fullOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Full"); err != nil {
		return nil, err
	}
	return bitmap.Own(bitmap.Full(uint32(o.n))), nil
}

// indexScanOp wraps a bitmap already materialized by a column index
// (an IndexedString inverted list, a position bitmap, a lineage
// descendants bitmap) as a clone-on-write view.
type indexScanOp struct{ bm *bitmap.Bitmap }

func (o indexScanOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "IndexScan"); err != nil {
		return nil, err
	}
	return bitmap.Borrow(o.bm), nil
}

// bitmapProducerOp computes its bitmap lazily: phylogenetic descendant
// sets, insertion regex search, or any other index lookup that can
// fail and needs to surface a compile-time-deferred error at Evaluate.
type bitmapProducerOp struct {
	produce func() (*bitmap.Bitmap, error)
}

func (o bitmapProducerOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "BitmapProducer"); err != nil {
		return nil, err
	}
	bm, err := o.produce()
	if err != nil {
		return nil, err
	}
	return bitmap.Own(bm), nil
}

// unionOp evaluates every child and materializes their bitwise union
// via fast_union.
type unionOp struct{ children []Operator }

func (o unionOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Union"); err != nil {
		return nil, err
	}
	bitmaps := make([]*bitmap.Bitmap, len(o.children))
	for i, c := range o.children {
		bm, err := c.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		bitmaps[i] = bm.View()
	}
	return bitmap.Own(bitmap.FastUnion(bitmaps)), nil
}

// intersectionOp intersects its positive children and subtracts its
// negative children, without ever materializing a negative child's
// complement. Positive children are intersected in ascending
// cardinality order so an early-empty result skips the rest.
type intersectionOp struct {
	positive []Operator
	negative []Operator
	n        int
}

func (o intersectionOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Intersection"); err != nil {
		return nil, err
	}
	var acc *bitmap.Bitmap
	if len(o.positive) == 0 {
		acc = bitmap.Full(uint32(o.n))
	} else {
		positives := make([]*bitmap.Bitmap, len(o.positive))
		for i, c := range o.positive {
			bm, err := c.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			positives[i] = bm.View()
		}
		sort.Slice(positives, func(i, j int) bool {
			return positives[i].Cardinality() < positives[j].Cardinality()
		})
		acc = positives[0]
		for _, bm := range positives[1:] {
			if acc.IsEmpty() {
				break
			}
			acc = bitmap.Intersection(acc, bm)
		}
	}
	for _, c := range o.negative {
		if acc.IsEmpty() {
			break
		}
		bm, err := c.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		acc = bitmap.Difference(acc, bm.View())
	}
	return bitmap.Own(acc), nil
}

// complementOp evaluates its child and returns every row of the
// partition's universe not in that result.
type complementOp struct {
	child Operator
	n     int
}

func (o complementOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Complement"); err != nil {
		return nil, err
	}
	bm, err := o.child.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return bitmap.Own(bm.View().Complement(uint32(o.n))), nil
}

// selectionOp row-scans a chain of predicates that each produce their
// own bitmap (scalar comparisons, regex matches); the results are
// intersected. It exists as a distinct operator from Intersection so
// compile can keep predicates over the same column together for
// locality, matching the source's row-scan fallback for columns with
// no usable index.
type selectionOp struct {
	predicates []func() (*bitmap.Bitmap, error)
	n          int
}

func (o selectionOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Selection"); err != nil {
		return nil, err
	}
	acc := bitmap.Full(uint32(o.n))
	for _, p := range o.predicates {
		if acc.IsEmpty() {
			break
		}
		bm, err := p()
		if err != nil {
			return nil, err
		}
		acc = bitmap.Intersection(acc, bm)
	}
	return bitmap.Own(acc), nil
}

// rangeSelectionOp wraps a single pre-computed range-scan result (a
// sorted-column binary search, or a scan fallback for an unsorted one).
type rangeSelectionOp struct {
	compute func() *bitmap.Bitmap
}

func (o rangeSelectionOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "RangeSelection"); err != nil {
		return nil, err
	}
	return bitmap.Own(o.compute()), nil
}

// thresholdOp selects rows matched by at least k (or exactly k) of its
// children, by tallying a per-row match count over every child's
// result.
type thresholdOp struct {
	positive []Operator
	negative []Operator
	k        int
	exactly  bool
	n        int
}

func (o thresholdOp) Evaluate(ctx context.Context) (*bitmap.CopyOnWriteBitmap, error) {
	if err := checkDeadline(ctx, "Threshold"); err != nil {
		return nil, err
	}
	counts := make([]int, o.n)
	tally := func(bm *bitmap.Bitmap) {
		bm.Iterate(func(row types.RowID) bool {
			if int(row) < len(counts) {
				counts[row]++
			}
			return true
		})
	}
	for _, c := range o.positive {
		bm, err := c.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		tally(bm.View())
	}
	for _, c := range o.negative {
		bm, err := c.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		tally(bm.View().Complement(uint32(o.n)))
	}
	result := bitmap.New()
	for row, c := range counts {
		matched := c >= o.k
		if o.exactly {
			matched = c == o.k
		}
		if matched {
			result.Add(types.RowID(row))
		}
	}
	return bitmap.Own(result), nil
}
