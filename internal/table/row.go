package table

import "github.com/standardbeagle/silo/internal/types"

// ParsedRow is one ingest record already decoded from ndjson into
// typed Go values, keyed by column name. A column absent from a map
// (or present with a nil pointer) is appended as NULL. Insertion
// columns map a 1-indexed reference position to the literal inserted
// text observed at that position.
type ParsedRow struct {
	PrimaryKey string

	IndexedStrings map[string]*string
	PangoLineages  map[string]*string
	Strings        map[string]*string
	Dates          map[string]*types.Date
	Int32s         map[string]*int32
	Float64s       map[string]*float64
	Bools          map[string]*bool

	NucleotideSequences map[string]*string
	AminoAcidSequences  map[string]*string

	InsertionsNuc map[string]map[int]string
	InsertionsAA  map[string]map[int]string
}
