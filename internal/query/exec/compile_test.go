package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/query/rewrite"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

func rowsOf(arr []types.RowID) []int {
	out := make([]int, len(arr))
	for i, r := range arr {
		out[i] = int(r)
	}
	return out
}

func strPtr(s string) *string { return &s }

func seedSchema(t *testing.T) *table.TableSchema {
	t.Helper()
	schema, err := table.NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
			{Name: "country", Type: types.ColumnIndexedString},
			{Name: "age", Type: types.ColumnInt32},
			{Name: "main", Type: types.ColumnNucleotideSequence},
			{Name: "main", Type: types.ColumnInsertionNuc},
		},
		map[string]string{"main": "ACGT"},
		"main", "",
	)
	require.NoError(t, err)
	return schema
}

// seedPartition reproduces the walkthrough scenario: the last row
// carries an ambiguous N at 0-indexed position 2, whose expansion
// {A,C,G,T} includes the reference 'G' there, so it must count as a
// mutation under AmbiguityUpper but not under AmbiguityLower.
func seedPartition(t *testing.T) (*table.TableSchema, *table.TablePartition) {
	t.Helper()
	schema := seedSchema(t)
	tbl := table.NewTable(schema)
	p := tbl.AddPartition()

	rows := []table.ParsedRow{
		{
			PrimaryKey:          "row1",
			IndexedStrings:      map[string]*string{"strain": strPtr("row1"), "country": strPtr("CH")},
			Int32s:              map[string]*int32{"age": i32Ptr(10)},
			NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
		},
		{
			PrimaryKey:          "row2",
			IndexedStrings:      map[string]*string{"strain": strPtr("row2"), "country": strPtr("DE")},
			Int32s:              map[string]*int32{"age": i32Ptr(20)},
			NucleotideSequences: map[string]*string{"main": strPtr("ACAT")},
		},
		{
			PrimaryKey:          "row3",
			IndexedStrings:      map[string]*string{"strain": strPtr("row3"), "country": strPtr("CH")},
			Int32s:              map[string]*int32{"age": i32Ptr(30)},
			NucleotideSequences: map[string]*string{"main": strPtr("ACNT")},
		},
	}
	for _, row := range rows {
		_, err := tbl.Append(p, row)
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Finalize(p, table.FinalizeOptions{}))
	return schema, p
}

func i32Ptr(v int32) *int32 { return &v }

func evaluate(t *testing.T, e expr.Expression, schema *table.TableSchema, p *table.TablePartition) []int {
	t.Helper()
	op, err := Compile(e, schema, p)
	require.NoError(t, err)
	bm, err := op.Evaluate(context.Background())
	require.NoError(t, err)
	return rowsOf(bm.View().ToArray())
}

func TestHasMutationUpperIncludesAmbiguousRow(t *testing.T) {
	schema, p := seedPartition(t)
	e := &expr.Maybe{Child: &expr.HasMutation{Kind: expr.Nucleotide, SequenceName: "main", Position: 2}}
	rewritten, err := rewrite.Rewrite(e, schema, expr.AmbiguityNone)
	require.NoError(t, err)
	got := evaluate(t, rewritten, schema, p)
	assert.ElementsMatch(t, []int{1, 2}, got)
}

func TestHasMutationLowerExcludesAmbiguousRow(t *testing.T) {
	schema, p := seedPartition(t)
	e := &expr.Exact{Child: &expr.HasMutation{Kind: expr.Nucleotide, SequenceName: "main", Position: 2}}
	rewritten, err := rewrite.Rewrite(e, schema, expr.AmbiguityNone)
	require.NoError(t, err)
	got := evaluate(t, rewritten, schema, p)
	assert.ElementsMatch(t, []int{1}, got)
}

// A row with no sequence value at all must never satisfy HasMutation,
// under either ambiguity bound: a null row contributes to no
// per-symbol bitmap, so the predicate's match set (a union of
// per-symbol bitmaps) can never contain it.
func TestHasMutationExcludesNullSequenceRow(t *testing.T) {
	schema := seedSchema(t)
	tbl := table.NewTable(schema)
	p := tbl.AddPartition()

	rows := []table.ParsedRow{
		{
			PrimaryKey:          "row1",
			IndexedStrings:      map[string]*string{"strain": strPtr("row1"), "country": strPtr("CH")},
			Int32s:              map[string]*int32{"age": i32Ptr(10)},
			NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
		},
		{
			PrimaryKey:     "row2",
			IndexedStrings: map[string]*string{"strain": strPtr("row2"), "country": strPtr("DE")},
			Int32s:         map[string]*int32{"age": i32Ptr(20)},
			// No "main" entry at all: row2 has no sequence.
		},
		{
			PrimaryKey:          "row3",
			IndexedStrings:      map[string]*string{"strain": strPtr("row3"), "country": strPtr("CH")},
			Int32s:              map[string]*int32{"age": i32Ptr(30)},
			NucleotideSequences: map[string]*string{"main": strPtr("ACNT")},
		},
	}
	for _, row := range rows {
		_, err := tbl.Append(p, row)
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Finalize(p, table.FinalizeOptions{}))

	for _, mode := range []expr.AmbiguityMode{expr.AmbiguityUpper, expr.AmbiguityLower} {
		e := &expr.HasMutation{Kind: expr.Nucleotide, SequenceName: "main", Position: 2}
		rewritten, err := rewrite.Rewrite(e, schema, mode)
		require.NoError(t, err)
		got := evaluate(t, rewritten, schema, p)
		assert.NotContains(t, got, 1, "null sequence row must never match HasMutation (mode %v)", mode)
	}
}

func TestCompileStringEqualsOnIndexedColumn(t *testing.T) {
	schema, p := seedPartition(t)
	got := evaluate(t, &expr.StringEquals{Column: "country", Value: "CH"}, schema, p)
	assert.ElementsMatch(t, []int{0, 2}, got)
}

func TestCompileStringEqualsUnknownValueIsEmpty(t *testing.T) {
	schema, p := seedPartition(t)
	got := evaluate(t, &expr.StringEquals{Column: "country", Value: "FR"}, schema, p)
	assert.Empty(t, got)
}

func TestCompileIntBetween(t *testing.T) {
	schema, p := seedPartition(t)
	from, to := int32(15), int32(25)
	got := evaluate(t, &expr.IntBetween{Column: "age", From: &from, To: &to}, schema, p)
	assert.ElementsMatch(t, []int{1}, got)
}

func TestCompileAndWithNotAppliesDeMorgan(t *testing.T) {
	schema, p := seedPartition(t)
	e := &expr.And{Children: []expr.Expression{
		&expr.StringEquals{Column: "country", Value: "CH"},
		&expr.Not{Child: &expr.StringEquals{Column: "strain", Value: "row1"}},
	}}
	got := evaluate(t, e, schema, p)
	assert.ElementsMatch(t, []int{2}, got)
}

func TestCompileOrWithNotAppliesDeMorgan(t *testing.T) {
	schema, p := seedPartition(t)
	e := &expr.Or{Children: []expr.Expression{
		&expr.StringEquals{Column: "country", Value: "DE"},
		&expr.Not{Child: &expr.StringEquals{Column: "strain", Value: "row1"}},
	}}
	got := evaluate(t, e, schema, p)
	assert.ElementsMatch(t, []int{1, 2}, got)
}

func TestCompileUnknownColumnIsBadRequest(t *testing.T) {
	schema, p := seedPartition(t)
	_, err := Compile(&expr.StringEquals{Column: "nope", Value: "x"}, schema, p)
	assert.Error(t, err)
}

func TestCompileWrongColumnTypeIsBadRequest(t *testing.T) {
	schema, p := seedPartition(t)
	_, err := Compile(&expr.IntEquals{Column: "country", Value: 1}, schema, p)
	assert.Error(t, err)
}

func TestCompileIsNullOnSequenceColumn(t *testing.T) {
	schema := seedSchema(t)
	tbl := table.NewTable(schema)
	p := tbl.AddPartition()
	_, err := tbl.Append(p, table.ParsedRow{
		PrimaryKey:          "row1",
		IndexedStrings:      map[string]*string{"strain": strPtr("row1"), "country": strPtr("CH")},
		Int32s:              map[string]*int32{"age": i32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": nil},
	})
	require.NoError(t, err)
	got := evaluate(t, &expr.IsNull{Column: "main"}, schema, p)
	assert.ElementsMatch(t, []int{0}, got)
}
