package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

func twoPartitionTable(t *testing.T) (*table.TableSchema, []*table.TablePartition) {
	t.Helper()
	schema := seedSchema(t)
	tbl := table.NewTable(schema)

	p1 := tbl.AddPartition()
	_, err := tbl.Append(p1, table.ParsedRow{
		PrimaryKey:          "a",
		IndexedStrings:      map[string]*string{"strain": strPtr("a"), "country": strPtr("CH")},
		Int32s:              map[string]*int32{"age": i32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.Finalize(p1, table.FinalizeOptions{}))

	p2 := tbl.AddPartition()
	_, err = tbl.Append(p2, table.ParsedRow{
		PrimaryKey:          "b",
		IndexedStrings:      map[string]*string{"strain": strPtr("b"), "country": strPtr("CH")},
		Int32s:              map[string]*int32{"age": i32Ptr(2)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.Finalize(p2, table.FinalizeOptions{}))

	return schema, []*table.TablePartition{p1, p2}
}

func TestExecutorMatchesAcrossAllPartitions(t *testing.T) {
	schema, partitions := twoPartitionTable(t)
	exec := NewExecutor(2)
	results, err := exec.Execute(context.Background(), &expr.StringEquals{Column: "country", Value: "CH"}, schema, partitions)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, partitions[i].ID(), r.Partition)
		assert.ElementsMatch(t, []types.RowID{0}, r.Rows.View().ToArray())
	}
}

func TestExecutorReturnsFirstCompileError(t *testing.T) {
	schema, partitions := twoPartitionTable(t)
	exec := NewExecutor(2)
	_, err := exec.Execute(context.Background(), &expr.StringEquals{Column: "nope", Value: "x"}, schema, partitions)
	assert.Error(t, err)
}

func TestExecutorClampsNonPositiveParallelism(t *testing.T) {
	exec := NewExecutor(0)
	assert.Equal(t, 1, exec.parallelThreads)
}
