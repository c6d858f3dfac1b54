package table

import (
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

// validateColumn checks row's value for col without writing anything.
// Every column type except the two sequence types always accepts its
// value (a nil pointer just means null), so only ColumnNucleotideSequence
// and ColumnAminoAcidSequence have anything to reject here; Append runs
// this over every column before committing any of them, so a bad
// sequence value at the end of schema.Columns can never be discovered
// after earlier columns have already been written.
func (p *TablePartition) validateColumn(col types.ColumnIdentifier, row ParsedRow, rowInBatch int) error {
	switch col.Type {
	case types.ColumnNucleotideSequence:
		v, ok := row.NucleotideSequences[col.Name]
		if !ok || v == nil {
			return nil
		}
		if err := p.nucleotideStores[col.Name].Validate(*v, rowInBatch); err != nil {
			return withColumn(err, col.Name)
		}
		return nil

	case types.ColumnAminoAcidSequence:
		v, ok := row.AminoAcidSequences[col.Name]
		if !ok || v == nil {
			return nil
		}
		if err := p.aminoAcidStores[col.Name].Validate(*v, rowInBatch); err != nil {
			return withColumn(err, col.Name)
		}
		return nil

	default:
		return nil
	}
}

// appendColumn inserts row's value for col into the matching column
// store and returns the row id it was assigned. Every column store is
// driven in lockstep by TablePartition.rowCount, so every column's
// internal row id agrees with rowInBatch. Callers must run
// validateColumn over every column of the row first: by the time
// appendColumn runs, every sequence value is already known-good, so
// this never fails partway through a row.
func (p *TablePartition) appendColumn(col types.ColumnIdentifier, row ParsedRow, rowInBatch int) (types.RowID, error) {
	switch col.Type {
	case types.ColumnIndexedString:
		c := p.indexedStrings[col.Name]
		if v := row.IndexedStrings[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnPangoLineageIndexedString:
		c := p.pangoColumns[col.Name]
		if v := row.PangoLineages[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnString:
		c := p.stringColumns[col.Name]
		if v := row.Strings[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnDate:
		c := p.dateColumns[col.Name]
		if v := row.Dates[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnInt32:
		c := p.int32Columns[col.Name]
		if v := row.Int32s[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnFloat64:
		c := p.float64Columns[col.Name]
		if v := row.Float64s[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnBool:
		c := p.boolColumns[col.Name]
		if v := row.Bools[col.Name]; v != nil {
			return c.Insert(*v), nil
		}
		return c.InsertNull(), nil

	case types.ColumnNucleotideSequence:
		store := p.nucleotideStores[col.Name]
		v, ok := row.NucleotideSequences[col.Name]
		if !ok || v == nil {
			return store.InsertNull(), nil
		}
		rowID, err := store.Insert(*v, rowInBatch)
		if err != nil {
			return 0, withColumn(err, col.Name)
		}
		return rowID, nil

	case types.ColumnAminoAcidSequence:
		store := p.aminoAcidStores[col.Name]
		v, ok := row.AminoAcidSequences[col.Name]
		if !ok || v == nil {
			return store.InsertNull(), nil
		}
		rowID, err := store.Insert(*v, rowInBatch)
		if err != nil {
			return 0, withColumn(err, col.Name)
		}
		return rowID, nil

	case types.ColumnInsertionNuc:
		rowID := types.RowID(rowInBatch)
		idx := p.insertionNuc[col.Name]
		for pos, text := range row.InsertionsNuc[col.Name] {
			idx.Insert(col.Name, pos, text, rowID)
		}
		return rowID, nil

	case types.ColumnInsertionAA:
		rowID := types.RowID(rowInBatch)
		idx := p.insertionAA[col.Name]
		for pos, text := range row.InsertionsAA[col.Name] {
			idx.Insert(col.Name, pos, text, rowID)
		}
		return rowID, nil

	default:
		return 0, siloerrors.NewInvalidSchemaError(col.Name, "unknown column type")
	}
}

func withColumn(err error, column string) error {
	if ae, ok := err.(*siloerrors.AppendError); ok {
		return ae.WithColumn(column)
	}
	return err
}
