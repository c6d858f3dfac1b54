package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

func strPtr(s string) *string { return &s }

func basicSchema(t *testing.T) *TableSchema {
	t.Helper()
	schema, err := NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
			{Name: "country", Type: types.ColumnIndexedString},
			{Name: "date", Type: types.ColumnDate},
			{Name: "age", Type: types.ColumnInt32},
			{Name: "main", Type: types.ColumnNucleotideSequence},
			{Name: "main", Type: types.ColumnInsertionNuc},
		},
		map[string]string{"main": "ACGT"},
		"main",
		"",
	)
	require.NoError(t, err)
	return schema
}

func TestNewTableSchemaRejectsMissingReferenceSequence(t *testing.T) {
	_, err := NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
			{Name: "main", Type: types.ColumnNucleotideSequence},
		},
		map[string]string{},
		"main", "",
	)
	assert.Error(t, err)
}

func TestNewTableSchemaRejectsDuplicateColumn(t *testing.T) {
	_, err := NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
			{Name: "strain", Type: types.ColumnIndexedString},
		},
		map[string]string{}, "", "",
	)
	assert.Error(t, err)
}

func TestNewTableSchemaRejectsMissingPrimaryKeyColumn(t *testing.T) {
	_, err := NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "country", Type: types.ColumnIndexedString},
		},
		map[string]string{}, "", "",
	)
	assert.Error(t, err)
}

func TestAppendAndReadBack(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	row := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("Switzerland")},
		Dates:               map[string]*types.Date{"date": datePtr(19000)},
		Int32s:              map[string]*int32{"age": int32Ptr(42)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGA")},
		InsertionsNuc:       map[string]map[int]string{"main": {3: "TT"}},
	}
	rowID, err := tbl.Append(p, row)
	require.NoError(t, err)
	assert.Equal(t, types.RowID(0), rowID)

	country, ok := p.IndexedString("country")
	require.True(t, ok)
	v, hasValue := country.Value(0)
	assert.True(t, hasValue)
	assert.Equal(t, "Switzerland", v)

	insIdx, ok := p.InsertionIndex("main")
	require.True(t, ok)
	bm, found := insIdx.ExactFilter("main", 3, "TT")
	require.True(t, found)
	assert.True(t, bm.Contains(0))

	require.NoError(t, tbl.Validate())
}

func TestAppendRejectsDuplicatePrimaryKey(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	row := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("A")},
		Dates:               map[string]*types.Date{"date": datePtr(1)},
		Int32s:              map[string]*int32{"age": int32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	}
	_, err := tbl.Append(p, row)
	require.NoError(t, err)

	_, err = tbl.Append(p, row)
	require.Error(t, err)
	var appendErr *siloerrors.AppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, siloerrors.AppendDuplicatePrimaryKey, appendErr.Kind)
}

func TestAppendRejectsBadSequenceLength(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	row := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("A")},
		Dates:               map[string]*types.Date{"date": datePtr(1)},
		Int32s:              map[string]*int32{"age": int32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACG")},
	}
	_, err := tbl.Append(p, row)
	require.Error(t, err)
	var appendErr *siloerrors.AppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, siloerrors.AppendBadLength, appendErr.Kind)
	assert.Equal(t, "main", appendErr.Column)
}

func TestAppendRejectsIllegalSymbol(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	row := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("A")},
		Dates:               map[string]*types.Date{"date": datePtr(1)},
		Int32s:              map[string]*int32{"age": int32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGZ")},
	}
	_, err := tbl.Append(p, row)
	require.Error(t, err)
	var appendErr *siloerrors.AppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, siloerrors.AppendIllegalSymbol, appendErr.Kind)
}

// A bad sequence value in the middle of a batch must not leave the
// metadata columns declared earlier in schema.Columns with a phantom
// entry for the rejected row: the next successful Append reuses the
// same rowInBatch index, so any such entry would desync every column
// populated after the failure point from rowCount onward.
func TestAppendRejectsRowWithoutCorruptingLaterAppends(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	good1 := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("CH")},
		Dates:               map[string]*types.Date{"date": datePtr(1)},
		Int32s:              map[string]*int32{"age": int32Ptr(10)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	}
	bad := ParsedRow{
		PrimaryKey:          "seq/2",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/2"), "country": strPtr("DE")},
		Dates:               map[string]*types.Date{"date": datePtr(2)},
		Int32s:              map[string]*int32{"age": int32Ptr(20)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGZ")},
	}
	good2 := ParsedRow{
		PrimaryKey:          "seq/3",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/3"), "country": strPtr("FR")},
		Dates:               map[string]*types.Date{"date": datePtr(3)},
		Int32s:              map[string]*int32{"age": int32Ptr(30)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	}

	_, err := tbl.Append(p, good1)
	require.NoError(t, err)

	_, err = tbl.Append(p, bad)
	require.Error(t, err)
	var appendErr *siloerrors.AppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, siloerrors.AppendIllegalSymbol, appendErr.Kind)

	rowID, err := tbl.Append(p, good2)
	require.NoError(t, err)
	assert.Equal(t, types.RowID(1), rowID)

	country, ok := p.IndexedString("country")
	require.True(t, ok)
	v, hasValue := country.Value(1)
	assert.True(t, hasValue)
	assert.Equal(t, "FR", v)

	age, ok := p.Int32("age")
	require.True(t, ok)
	ageValue, hasValue := age.Value(1)
	assert.True(t, hasValue)
	assert.Equal(t, int32(30), ageValue)

	assert.NoError(t, tbl.Validate())
}

func TestValidateCatchesColumnLengthMismatch(t *testing.T) {
	schema := basicSchema(t)
	tbl := NewTable(schema)
	p := tbl.AddPartition()

	row := ParsedRow{
		PrimaryKey:          "seq/1",
		IndexedStrings:      map[string]*string{"strain": strPtr("seq/1"), "country": strPtr("A")},
		Dates:               map[string]*types.Date{"date": datePtr(1)},
		Int32s:              map[string]*int32{"age": int32Ptr(1)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACGT")},
	}
	_, err := tbl.Append(p, row)
	require.NoError(t, err)

	// Directly bump rowCount to simulate a corrupted partition whose
	// rowCount no longer matches the length of its columns.
	p.rowCount++
	assert.Error(t, tbl.Validate())
}

func datePtr(d types.Date) *types.Date { return &d }
func int32Ptr(v int32) *int32         { return &v }
