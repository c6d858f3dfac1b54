package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

func strPtr(s string) *string { return &s }
func i32Ptr(v int32) *int32   { return &v }

func buildSeedTable(t *testing.T) *table.Table {
	t.Helper()
	schema, err := table.NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
			{Name: "age", Type: types.ColumnInt32},
			{Name: "main", Type: types.ColumnNucleotideSequence},
			{Name: "main", Type: types.ColumnInsertionNuc},
		},
		map[string]string{"main": "ACGT"},
		"main", "",
	)
	require.NoError(t, err)
	tbl := table.NewTable(schema)
	p := tbl.AddPartition()
	_, err = tbl.Append(p, table.ParsedRow{
		PrimaryKey:          "row1",
		IndexedStrings:      map[string]*string{"strain": strPtr("row1")},
		Int32s:              map[string]*int32{"age": i32Ptr(10)},
		NucleotideSequences: map[string]*string{"main": strPtr("ACAT")},
		InsertionsNuc:       map[string]map[int]string{"main": {5: "TT"}},
	})
	require.NoError(t, err)
	_, err = tbl.Append(p, table.ParsedRow{
		PrimaryKey:          "row2",
		IndexedStrings:      map[string]*string{"strain": strPtr("row2")},
		Int32s:              map[string]*int32{"age": nil},
		NucleotideSequences: map[string]*string{"main": nil},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.Finalize(p, table.FinalizeOptions{}))
	return tbl
}

func TestSaveWritesValidatableDirectory(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	v, err := Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v.Timestamp)

	got, ok := ValidateDirectory(filepath.Join(root, v.DirName()))
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestNewestCompatiblePicksLatestTimestamp(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	_, err := Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)
	newer, err := Save(root, tbl, time.Unix(1700000500, 0))
	require.NoError(t, err)

	v, dir, ok := NewestCompatible(root)
	require.True(t, ok)
	assert.Equal(t, newer, v)
	assert.Equal(t, filepath.Join(root, newer.DirName()), dir)
}

func TestLoadRoundTripsRowsAndNulls(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	_, err := Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)

	loaded, _, err := Load(root, nil)
	require.NoError(t, err)

	partitions := loaded.Partitions()
	require.Len(t, partitions, 1)
	p := partitions[0]
	assert.Equal(t, 2, p.RowCount())

	strain, ok := p.IndexedString("strain")
	require.True(t, ok)
	v, isSet := strain.Value(0)
	assert.True(t, isSet)
	assert.Equal(t, "row1", v)

	age, ok := p.Int32("age")
	require.True(t, ok)
	assert.True(t, age.IsNull(1))

	seq, ok := p.NucleotideSequence("main")
	require.True(t, ok)
	assert.True(t, seq.NullBitmap().Contains(1))
	assert.Equal(t, "A", seq.ReferenceSymbol(0).String())

	insIdx, ok := p.InsertionIndex("main")
	require.True(t, ok)
	bm, found := insIdx.ExactFilter("main", 5, "TT")
	require.True(t, found)
	assert.True(t, bm.Contains(0))
}

func TestValidateDirectoryRejectsTimestampMismatch(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	v, err := Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)

	require.NoError(t, WriteDataVersion(filepath.Join(root, v.DirName()), DataVersion{
		Timestamp:            1699999999,
		SerializationVersion: SerializationVersion,
	}))
	_, ok := ValidateDirectory(filepath.Join(root, v.DirName()))
	assert.False(t, ok)
}
