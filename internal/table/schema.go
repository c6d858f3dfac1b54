// Package table implements Component I: TableSchema, Table, and
// TablePartition — the row-append path that dispatches each parsed
// value to the column partition matching its declared ColumnType, plus
// the finalize step that builds auxiliary indexes once a partition
// stops accepting writes.
package table

import (
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

// TableSchema fixes the shape every partition of a Table shares: the
// primary-key column, the ordered set of declared columns, the
// reference sequence for each sequence column, and the default
// sequence names nucleotide/amino-acid filters fall back to when a
// query omits one explicitly.
type TableSchema struct {
	PrimaryKey                string
	Columns                   []types.ColumnIdentifier
	ReferenceSequences        map[string]string // sequence column name -> reference string
	DefaultNucleotideSequence string
	DefaultAminoAcidSequence  string
}

// NewTableSchema validates and constructs a TableSchema. An insertion
// column (insertion_nuc/insertion_aa) is declared under the same Name
// as the sequence column it annotates, so the duplicate-name check
// allows exactly that one pairing and rejects every other repeat.
func NewTableSchema(primaryKey string, columns []types.ColumnIdentifier, referenceSequences map[string]string, defaultNucleotideSequence, defaultAminoAcidSequence string) (*TableSchema, error) {
	if primaryKey == "" {
		return nil, siloerrors.NewInvalidSchemaError("", "primary key column name must not be empty")
	}
	typesByName := make(map[string][]types.ColumnType, len(columns))
	var pkFound bool
	for _, col := range columns {
		if col.Name == "" {
			return nil, siloerrors.NewInvalidSchemaError("", "column name must not be empty")
		}
		typesByName[col.Name] = append(typesByName[col.Name], col.Type)
		if col.Name == primaryKey {
			pkFound = true
		}
		if isSequenceColumn(col.Type) {
			if _, ok := referenceSequences[col.Name]; !ok {
				return nil, siloerrors.NewInvalidSchemaError(col.Name, "sequence column declared without a reference sequence")
			}
		}
	}
	for name, ts := range typesByName {
		switch {
		case len(ts) == 1:
			// fine
		case len(ts) == 2 && isSequenceInsertionPair(ts[0], ts[1]):
			// the one allowed pairing: a sequence column and its
			// matching insertion column sharing a name
		default:
			return nil, siloerrors.NewInvalidSchemaError(name, "duplicate column name")
		}
	}
	if !pkFound {
		return nil, siloerrors.NewInvalidSchemaError(primaryKey, "primary key column must appear in the column list")
	}
	return &TableSchema{
		PrimaryKey:                primaryKey,
		Columns:                   columns,
		ReferenceSequences:        referenceSequences,
		DefaultNucleotideSequence: defaultNucleotideSequence,
		DefaultAminoAcidSequence:  defaultAminoAcidSequence,
	}, nil
}

// isSequenceInsertionPair reports whether a and b are a sequence column
// and its matching insertion column, in either order.
func isSequenceInsertionPair(a, b types.ColumnType) bool {
	pair := func(seq, ins types.ColumnType) bool {
		return (a == seq && b == ins) || (a == ins && b == seq)
	}
	return pair(types.ColumnNucleotideSequence, types.ColumnInsertionNuc) ||
		pair(types.ColumnAminoAcidSequence, types.ColumnInsertionAA)
}

// ColumnByName returns the declared ColumnIdentifier for name, if any.
func (s *TableSchema) ColumnByName(name string) (types.ColumnIdentifier, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return types.ColumnIdentifier{}, false
}

// ReferenceSequence returns the reference string declared for the named
// sequence column of the given kind.
func (s *TableSchema) ReferenceSequence(kind SequenceKind, name string) (string, bool) {
	col, ok := s.ColumnByName(name)
	if !ok {
		return "", false
	}
	if kind == KindNucleotide && col.Type != types.ColumnNucleotideSequence {
		return "", false
	}
	if kind == KindAminoAcid && col.Type != types.ColumnAminoAcidSequence {
		return "", false
	}
	ref, ok := s.ReferenceSequences[name]
	return ref, ok
}

// DefaultSequenceName returns the schema's default sequence column name
// for the given kind, or "" if none is configured.
func (s *TableSchema) DefaultSequenceName(kind SequenceKind) string {
	if kind == KindAminoAcid {
		return s.DefaultAminoAcidSequence
	}
	return s.DefaultNucleotideSequence
}

// SequenceKind mirrors expr.SequenceKind without importing the expr
// package, keeping table free of a dependency on the query layer.
type SequenceKind uint8

const (
	KindNucleotide SequenceKind = iota
	KindAminoAcid
)

func isSequenceColumn(t types.ColumnType) bool {
	switch t {
	case types.ColumnNucleotideSequence, types.ColumnAminoAcidSequence:
		return true
	default:
		return false
	}
}

