// Package types holds the identifier and enum types shared across the
// columnar storage engine: row ids, partition ids, and column/sequence
// kind enumerations. Keeping these in one leaf package avoids import
// cycles between column, table, and query/expr.
package types

import (
	"fmt"
	"time"
)

// RowID is a dense, zero-based row index within a single partition.
// Row ids are never reused: once a row is appended it keeps its id for
// the lifetime of the partition.
type RowID uint32

// PartitionID identifies a partition within a Table.
type PartitionID uint32

// GlobalRowID addresses a row across the whole database.
type GlobalRowID struct {
	Partition PartitionID
	Row       RowID
}

func (g GlobalRowID) String() string {
	return fmt.Sprintf("%d:%d", g.Partition, g.Row)
}

// ColumnType enumerates the column kinds a TableSchema may declare.
type ColumnType uint8

const (
	ColumnUnknown ColumnType = iota
	ColumnIndexedString
	ColumnString
	ColumnDate
	ColumnInt32
	ColumnFloat64
	ColumnBool
	ColumnNucleotideSequence
	ColumnAminoAcidSequence
	ColumnInsertionNuc
	ColumnInsertionAA
	ColumnPangoLineageIndexedString
)

func (t ColumnType) String() string {
	switch t {
	case ColumnIndexedString:
		return "indexed_string"
	case ColumnString:
		return "string"
	case ColumnDate:
		return "date"
	case ColumnInt32:
		return "int32"
	case ColumnFloat64:
		return "float64"
	case ColumnBool:
		return "bool"
	case ColumnNucleotideSequence:
		return "nucleotide_sequence"
	case ColumnAminoAcidSequence:
		return "amino_acid_sequence"
	case ColumnInsertionNuc:
		return "insertion_nuc"
	case ColumnInsertionAA:
		return "insertion_aa"
	case ColumnPangoLineageIndexedString:
		return "pango_lineage_indexed_string"
	default:
		return "unknown"
	}
}

// ColumnIdentifier names one column of a TableSchema.
type ColumnIdentifier struct {
	Name string
	Type ColumnType
}

// ValueID is a dense id assigned by a Dictionary (Component C) to an
// interned string. The zero value is reserved and never assigned to a
// real string; it is used as the encoding of NULL for indexed-string
// columns.
type ValueID uint32

// NullValueID is the reserved ValueID meaning "this row is null".
const NullValueID ValueID = 0

// Date is a day-granularity date encoded as days since the Unix epoch.
// Zero is reserved for NULL.
type Date int32

// NullDate is the reserved Date sentinel for NULL.
const NullDate Date = 0

const dateLayout = "2006-01-02"

// ParseDate parses a "YYYY-MM-DD" literal into a Date. The result is
// offset by one from the raw day count so that the Unix epoch itself
// never collides with NullDate.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return NullDate, fmt.Errorf("invalid date %q: %w", s, err)
	}
	days := t.Unix() / 86400
	return Date(days + 1), nil
}

// String renders the Date back to "YYYY-MM-DD", or "null".
func (d Date) String() string {
	if d == NullDate {
		return "null"
	}
	t := time.Unix((int64(d)-1)*86400, 0).UTC()
	return t.Format(dateLayout)
}
