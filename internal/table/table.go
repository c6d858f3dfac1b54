package table

import (
	"fmt"
	"sync"

	"github.com/standardbeagle/silo/internal/dictionary"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

type dictionaryRef struct {
	dict *dictionary.Dictionary
}

// Table owns a TableSchema, the dictionaries shared by every partition's
// indexed-string and pango-lineage columns, and the partitions
// themselves. Primary-key uniqueness is enforced globally, across every
// partition, not just within one.
type Table struct {
	mu           sync.RWMutex
	schema       *TableSchema
	dictionaries map[string]*dictionaryRef // column name -> shared dictionary
	partitions   []*TablePartition
	primaryKeys  map[string]types.GlobalRowID
}

// NewTable constructs an empty Table for schema, allocating one shared
// Dictionary per indexed-string/pango-lineage column.
func NewTable(schema *TableSchema) *Table {
	dictionaries := make(map[string]*dictionaryRef)
	for _, col := range schema.Columns {
		if col.Type == types.ColumnIndexedString || col.Type == types.ColumnPangoLineageIndexedString {
			dictionaries[col.Name] = &dictionaryRef{dict: dictionary.New()}
		}
	}
	return &Table{
		schema:       schema,
		dictionaries: dictionaries,
		primaryKeys:  make(map[string]types.GlobalRowID),
	}
}

// Schema returns the table's schema.
func (t *Table) Schema() *TableSchema { return t.schema }

// Partitions returns the table's partitions in addition order.
func (t *Table) Partitions() []*TablePartition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TablePartition, len(t.partitions))
	copy(out, t.partitions)
	return out
}

// Dictionary returns the shared dictionary backing an indexed-string or
// pango-lineage column.
func (t *Table) Dictionary(column string) (*dictionary.Dictionary, bool) {
	ref, ok := t.dictionaries[column]
	if !ok {
		return nil, false
	}
	return ref.dict, true
}

// AddPartition appends a new, empty partition sharing the table's
// schema and dictionaries, and returns it for appends.
func (t *Table) AddPartition() *TablePartition {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := types.PartitionID(len(t.partitions))
	p := newTablePartition(id, t.schema, t.dictionaries)
	t.partitions = append(t.partitions, p)
	return p
}

// Append inserts one parsed row into partition, dispatching each value
// to the column matching its declared type. On any error the partition
// is left exactly as it was before the call: every column is validated
// before any of them commits, so a single bad column never leaves the
// row half-appended with the rest of the columns out of alignment.
func (t *Table) Append(partition *TablePartition, row ParsedRow) (types.RowID, error) {
	partition.mu.Lock()
	defer partition.mu.Unlock()

	if partition.finalized {
		return 0, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("partition %d is finalized and accepts no further writes", partition.id))
	}

	rowInBatch := partition.rowCount
	global := types.GlobalRowID{Partition: partition.id, Row: types.RowID(rowInBatch)}

	t.mu.Lock()
	if existing, dup := t.primaryKeys[row.PrimaryKey]; dup {
		t.mu.Unlock()
		return 0, siloerrors.NewAppendError(siloerrors.AppendDuplicatePrimaryKey,
			fmt.Errorf("primary key %q already used at %s", row.PrimaryKey, existing)).WithRowInBatch(rowInBatch)
	}
	t.primaryKeys[row.PrimaryKey] = global
	t.mu.Unlock()

	for _, col := range t.schema.Columns {
		if err := partition.validateColumn(col, row, rowInBatch); err != nil {
			t.mu.Lock()
			delete(t.primaryKeys, row.PrimaryKey)
			t.mu.Unlock()
			return 0, err
		}
	}

	var rowID types.RowID
	for _, col := range t.schema.Columns {
		var err error
		rowID, err = partition.appendColumn(col, row, rowInBatch)
		if err != nil {
			// validateColumn already rejected every failure mode
			// appendColumn can hit, so reaching here means the two
			// disagree about what's legal, not a bad row.
			t.mu.Lock()
			delete(t.primaryKeys, row.PrimaryKey)
			t.mu.Unlock()
			return 0, siloerrors.NewInternalError("table.Append", err)
		}
	}
	partition.rowCount++
	return rowID, nil
}

// Validate checks every partition's column-length invariant: every
// column in a partition must have exactly partition.rowCount values.
// Primary-key uniqueness is already enforced incrementally by Append,
// so Validate only re-confirms structural consistency.
func (t *Table) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.partitions {
		if err := p.validateLengths(); err != nil {
			return err
		}
	}
	return nil
}
