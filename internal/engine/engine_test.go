package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/silo/internal/persist"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

func strPtr(s string) *string { return &s }

func buildSeedTable(t *testing.T) *table.Table {
	t.Helper()
	schema, err := table.NewTableSchema(
		"strain",
		[]types.ColumnIdentifier{
			{Name: "strain", Type: types.ColumnIndexedString},
		},
		nil, "", "",
	)
	require.NoError(t, err)
	tbl := table.NewTable(schema)
	p := tbl.AddPartition()
	_, err = tbl.Append(p, table.ParsedRow{
		PrimaryKey:     "row1",
		IndexedStrings: map[string]*string{"strain": strPtr("row1")},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.Finalize(p, table.FinalizeOptions{}))
	return tbl
}

func TestOpenLoadsNewestCompatibleVersion(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	v, err := persist.Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)

	e, err := Open(root, nil)
	require.NoError(t, err)

	snap := e.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, v, snap.Version)
	assert.Equal(t, 1, snap.Table.Partitions()[0].RowCount())
}

func TestReloadSwapsToNewerVersion(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	first, err := persist.Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)

	e, err := Open(root, nil)
	require.NoError(t, err)
	original := e.Snapshot()
	require.Equal(t, first, original.Version)

	second, err := persist.Save(root, tbl, time.Unix(1700000500, 0))
	require.NoError(t, err)
	require.NoError(t, e.Reload())

	updated := e.Snapshot()
	assert.Equal(t, second, updated.Version)
	// The original snapshot is untouched by the swap; a query still
	// holding it would keep seeing the table it started with.
	assert.Equal(t, first, original.Version)
}

func TestStaleReflectsNewerVersionOnDisk(t *testing.T) {
	root := t.TempDir()
	tbl := buildSeedTable(t)
	_, err := persist.Save(root, tbl, time.Unix(1700000000, 0))
	require.NoError(t, err)

	e, err := Open(root, nil)
	require.NoError(t, err)
	assert.False(t, e.stale())

	_, err = persist.Save(root, tbl, time.Unix(1700000500, 0))
	require.NoError(t, err)
	assert.True(t, e.stale())
}
