package exec

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

// PartitionResult is one partition's matched row ids, local to that
// partition's own row numbering.
type PartitionResult struct {
	Partition types.PartitionID
	Rows      *bitmap.CopyOnWriteBitmap
}

// Executor runs a compiled filter across every partition of a table on
// a fixed-size worker pool. Partitions are independent; the first
// partition to fail cancels every partition still running and its
// error is returned.
type Executor struct {
	parallelThreads int
}

// NewExecutor builds an Executor bounded to parallelThreads concurrent
// partition evaluations. A non-positive value is clamped to 1.
func NewExecutor(parallelThreads int) *Executor {
	if parallelThreads < 1 {
		parallelThreads = 1
	}
	return &Executor{parallelThreads: parallelThreads}
}

// Execute compiles filter against every partition and evaluates it,
// task-parallel over partitions as described for the per-query
// scheduling model: within a partition, evaluation stays
// single-threaded. ctx's deadline is what Operator.Evaluate checks at
// every node boundary.
func (e *Executor) Execute(ctx context.Context, filter expr.Expression, schema *table.TableSchema, partitions []*table.TablePartition) ([]PartitionResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelThreads)

	results := make([]PartitionResult, len(partitions))
	for i, p := range partitions {
		i, p := i, p
		g.Go(func() error {
			op, err := Compile(filter, schema, p)
			if err != nil {
				return err
			}
			bm, err := op.Evaluate(gctx)
			if err != nil {
				return err
			}
			results[i] = PartitionResult{Partition: p.ID(), Rows: bm}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
