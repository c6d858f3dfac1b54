package persist

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/standardbeagle/silo/internal/alphabet"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

// optionalVec is the gob-encoded shape of a nullable column: a dense
// value vector plus a parallel validity mask. gob refuses to encode nil
// pointers, so nulls are carried as a mask rather than pointer slices.
type optionalVec[T any] struct {
	Values []T
	Valid  []bool
}

func collectOptional[T any](rowCount int, value func(types.RowID) (T, bool)) optionalVec[T] {
	vec := optionalVec[T]{
		Values: make([]T, rowCount),
		Valid:  make([]bool, rowCount),
	}
	for r := 0; r < rowCount; r++ {
		if v, ok := value(types.RowID(r)); ok {
			vec.Values[r] = v
			vec.Valid[r] = true
		}
	}
	return vec
}

// WritePartition serializes every column of partition to
// <dir>/table/partition_<n>/column_<name>.bin, one file per declared
// column (plus a sibling column_<name>_insertions.bin for every
// sequence column, empty when it has no insertions). Values are persisted rather than the
// live index structures built over them: reloading replays them
// through Table.Append/Table.Finalize, which rebuilds every auxiliary
// index without re-parsing ndjson or re-validating symbols.
func WritePartition(dir string, schema *table.TableSchema, partition *table.TablePartition) error {
	partDir := filepath.Join(dir, "table", partitionDirName(partition.ID()))
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		return err
	}
	if err := writeRowCount(partDir, partition.RowCount()); err != nil {
		return err
	}
	n := partition.RowCount()
	seen := make(map[string]bool)
	for _, col := range schema.Columns {
		if seen[col.Name] && !isSequenceColumn(col.Type) {
			continue
		}
		switch col.Type {
		case types.ColumnIndexedString:
			c, _ := partition.IndexedString(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnPangoLineageIndexedString:
			c, _ := partition.PangoLineage(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnString:
			c, _ := partition.String(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnDate:
			c, _ := partition.Date(col.Name)
			vec := collectOptional(n, func(r types.RowID) (int32, bool) {
				v, ok := c.Value(r)
				return int32(v), ok
			})
			if err := writeGob(partDir, col.Name, vec); err != nil {
				return err
			}
		case types.ColumnInt32:
			c, _ := partition.Int32(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnFloat64:
			c, _ := partition.Float64(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnBool:
			c, _ := partition.Bool(col.Name)
			if err := writeGob(partDir, col.Name, collectOptional(n, c.Value)); err != nil {
				return err
			}
		case types.ColumnNucleotideSequence:
			store, _ := partition.NucleotideSequence(col.Name)
			if err := writeGob(partDir, col.Name, exportSequenceStrings(store.Export())); err != nil {
				return err
			}
			idx, _ := partition.InsertionIndex(col.Name)
			if err := writeGob(partDir, col.Name+"_insertions", idx.ByRow(col.Name)); err != nil {
				return err
			}
		case types.ColumnAminoAcidSequence:
			store, _ := partition.AminoAcidSequence(col.Name)
			if err := writeGob(partDir, col.Name, exportSequenceStrings(store.Export())); err != nil {
				return err
			}
			idx, _ := partition.InsertionIndex(col.Name)
			if err := writeGob(partDir, col.Name+"_insertions", idx.ByRow(col.Name)); err != nil {
				return err
			}
		case types.ColumnInsertionNuc, types.ColumnInsertionAA:
			// Persisted alongside its paired sequence column above.
		}
		seen[col.Name] = true
	}
	return nil
}

// ReadPartitionRows reconstructs the ParsedRow batch a partition was
// originally appended from, by reading every column_*.bin file back and
// zipping them by row index.
func ReadPartitionRows(dir string, schema *table.TableSchema, partitionID types.PartitionID, rowCount int) ([]table.ParsedRow, error) {
	partDir := filepath.Join(dir, "table", partitionDirName(partitionID))
	rows := make([]table.ParsedRow, rowCount)

	seen := make(map[string]bool)
	for _, col := range schema.Columns {
		if seen[col.Name] && !isSequenceColumn(col.Type) {
			continue
		}
		switch col.Type {
		case types.ColumnIndexedString:
			if err := readOptionalStrings(partDir, col.Name, rows, func(row *table.ParsedRow) *map[string]*string {
				return &row.IndexedStrings
			}); err != nil {
				return nil, err
			}
		case types.ColumnPangoLineageIndexedString:
			if err := readOptionalStrings(partDir, col.Name, rows, func(row *table.ParsedRow) *map[string]*string {
				return &row.PangoLineages
			}); err != nil {
				return nil, err
			}
		case types.ColumnString:
			if err := readOptionalStrings(partDir, col.Name, rows, func(row *table.ParsedRow) *map[string]*string {
				return &row.Strings
			}); err != nil {
				return nil, err
			}
		case types.ColumnDate:
			var vec optionalVec[int32]
			if err := readGob(partDir, col.Name, &vec); err != nil {
				return nil, err
			}
			for r := range rows {
				if r >= len(vec.Valid) || !vec.Valid[r] {
					continue
				}
				d := types.Date(vec.Values[r])
				if rows[r].Dates == nil {
					rows[r].Dates = make(map[string]*types.Date)
				}
				rows[r].Dates[col.Name] = &d
			}
		case types.ColumnInt32:
			var vec optionalVec[int32]
			if err := readGob(partDir, col.Name, &vec); err != nil {
				return nil, err
			}
			for r := range rows {
				if r >= len(vec.Valid) || !vec.Valid[r] {
					continue
				}
				v := vec.Values[r]
				if rows[r].Int32s == nil {
					rows[r].Int32s = make(map[string]*int32)
				}
				rows[r].Int32s[col.Name] = &v
			}
		case types.ColumnFloat64:
			var vec optionalVec[float64]
			if err := readGob(partDir, col.Name, &vec); err != nil {
				return nil, err
			}
			for r := range rows {
				if r >= len(vec.Valid) || !vec.Valid[r] {
					continue
				}
				v := vec.Values[r]
				if rows[r].Float64s == nil {
					rows[r].Float64s = make(map[string]*float64)
				}
				rows[r].Float64s[col.Name] = &v
			}
		case types.ColumnBool:
			var vec optionalVec[bool]
			if err := readGob(partDir, col.Name, &vec); err != nil {
				return nil, err
			}
			for r := range rows {
				if r >= len(vec.Valid) || !vec.Valid[r] {
					continue
				}
				v := vec.Values[r]
				if rows[r].Bools == nil {
					rows[r].Bools = make(map[string]*bool)
				}
				rows[r].Bools[col.Name] = &v
			}
		case types.ColumnNucleotideSequence:
			if err := readOptionalStrings(partDir, col.Name, rows, func(row *table.ParsedRow) *map[string]*string {
				return &row.NucleotideSequences
			}); err != nil {
				return nil, err
			}
			var insertions map[types.RowID]map[int]string
			if err := readGob(partDir, col.Name+"_insertions", &insertions); err != nil {
				return nil, err
			}
			for row, byPos := range insertions {
				if rows[row].InsertionsNuc == nil {
					rows[row].InsertionsNuc = make(map[string]map[int]string)
				}
				rows[row].InsertionsNuc[col.Name] = byPos
			}
		case types.ColumnAminoAcidSequence:
			if err := readOptionalStrings(partDir, col.Name, rows, func(row *table.ParsedRow) *map[string]*string {
				return &row.AminoAcidSequences
			}); err != nil {
				return nil, err
			}
			var insertions map[types.RowID]map[int]string
			if err := readGob(partDir, col.Name+"_insertions", &insertions); err != nil {
				return nil, err
			}
			for row, byPos := range insertions {
				if rows[row].InsertionsAA == nil {
					rows[row].InsertionsAA = make(map[string]map[int]string)
				}
				rows[row].InsertionsAA[col.Name] = byPos
			}
		case types.ColumnInsertionNuc, types.ColumnInsertionAA:
			// read alongside its paired sequence column above.
		}
		seen[col.Name] = true
	}

	// Table.Append re-registers every row's primary key on replay, so
	// each ParsedRow must carry the key it was originally appended with.
	pkCol, _ := schema.ColumnByName(schema.PrimaryKey)
	for r := range rows {
		var v *string
		switch pkCol.Type {
		case types.ColumnIndexedString:
			v = rows[r].IndexedStrings[schema.PrimaryKey]
		case types.ColumnPangoLineageIndexedString:
			v = rows[r].PangoLineages[schema.PrimaryKey]
		case types.ColumnString:
			v = rows[r].Strings[schema.PrimaryKey]
		}
		if v == nil {
			return nil, fmt.Errorf("partition %d row %d: primary key column %q has no value", partitionID, r, schema.PrimaryKey)
		}
		rows[r].PrimaryKey = *v
	}
	return rows, nil
}

func partitionDirName(id types.PartitionID) string {
	return "partition_" + strconv.FormatUint(uint64(id), 10)
}

const rowCountFileName = "row_count.bin"

func writeRowCount(partDir string, n int) error {
	return os.WriteFile(filepath.Join(partDir, rowCountFileName), []byte(strconv.Itoa(n)), 0o644)
}

// ReadRowCount returns the row count recorded for the given partition
// directory under dir, as written by WritePartition.
func ReadRowCount(dir string, id types.PartitionID) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, "table", partitionDirName(id), rowCountFileName))
	if err != nil {
		return 0, fmt.Errorf("reading row count for partition %d: %w", id, err)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parsing row count for partition %d: %w", id, err)
	}
	return n, nil
}

func isSequenceColumn(t types.ColumnType) bool {
	return t == types.ColumnNucleotideSequence || t == types.ColumnAminoAcidSequence
}

// readOptionalStrings reads one string-valued optionalVec and stores
// its non-null entries into the per-row map selected by field.
func readOptionalStrings(dir, name string, rows []table.ParsedRow, field func(*table.ParsedRow) *map[string]*string) error {
	var vec optionalVec[string]
	if err := readGob(dir, name, &vec); err != nil {
		return err
	}
	for r := range rows {
		if r >= len(vec.Valid) || !vec.Valid[r] {
			continue
		}
		v := vec.Values[r]
		m := field(&rows[r])
		if *m == nil {
			*m = make(map[string]*string)
		}
		(*m)[name] = &v
	}
	return nil
}

// sequenceSymbol constrains exportSequenceStrings to the two sequence
// alphabets; the String method renders one symbol as its wire character.
type sequenceSymbol interface {
	alphabet.Nucleotide | alphabet.AminoAcid
	String() string
}

// exportSequenceStrings renders each exported symbol row back to its
// aligned string form; a nil symbol row marks a null sequence cell.
func exportSequenceStrings[S sequenceSymbol](symbolRows []*[]S) optionalVec[string] {
	vec := optionalVec[string]{
		Values: make([]string, len(symbolRows)),
		Valid:  make([]bool, len(symbolRows)),
	}
	for i, symbols := range symbolRows {
		if symbols == nil {
			continue
		}
		var b strings.Builder
		b.Grow(len(*symbols))
		for _, sym := range *symbols {
			b.WriteString(sym.String())
		}
		vec.Values[i] = b.String()
		vec.Valid[i] = true
	}
	return vec
}

func writeGob(dir, name string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encoding column %q: %w", name, err)
	}
	return os.WriteFile(filepath.Join(dir, "column_"+name+".bin"), buf.Bytes(), 0o644)
}

func readGob(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, "column_"+name+".bin"))
	if err != nil {
		return fmt.Errorf("reading column %q: %w", name, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decoding column %q: %w", name, err)
	}
	return nil
}
