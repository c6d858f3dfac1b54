package table

import (
	"sync"

	"github.com/standardbeagle/silo/internal/alphabet"
	"github.com/standardbeagle/silo/internal/column"
	"github.com/standardbeagle/silo/internal/insertion"
	"github.com/standardbeagle/silo/internal/lineage"
	"github.com/standardbeagle/silo/internal/phylo"
	"github.com/standardbeagle/silo/internal/sequence"
	"github.com/standardbeagle/silo/internal/types"
)

// TablePartition owns one shard's worth of column storage. Rows within
// a partition are densely numbered from 0 in insertion order; once
// Finalize returns, the partition accepts no further writes.
type TablePartition struct {
	mu        sync.RWMutex
	id        types.PartitionID
	schema    *TableSchema
	rowCount  int
	finalized bool

	indexedStrings map[string]*column.IndexedString
	pangoColumns   map[string]*column.PangoLineageIndexedString
	stringColumns  map[string]*column.StringColumn
	dateColumns    map[string]*column.DateColumn
	int32Columns   map[string]*column.Int32Column
	float64Columns map[string]*column.Float64Column
	boolColumns    map[string]*column.BoolColumn

	nucleotideStores map[string]*sequence.Store[alphabet.Nucleotide]
	aminoAcidStores  map[string]*sequence.Store[alphabet.AminoAcid]

	insertionNuc map[string]*insertion.Index
	insertionAA  map[string]*insertion.Index

	lineageIndexes map[string]*lineage.Index // pango column name -> index
	phyloIndex     *phylo.Index
}

func newTablePartition(id types.PartitionID, schema *TableSchema, dictionaries map[string]*dictionaryRef) *TablePartition {
	p := &TablePartition{
		id:               id,
		schema:           schema,
		indexedStrings:   make(map[string]*column.IndexedString),
		pangoColumns:     make(map[string]*column.PangoLineageIndexedString),
		stringColumns:    make(map[string]*column.StringColumn),
		dateColumns:      make(map[string]*column.DateColumn),
		int32Columns:     make(map[string]*column.Int32Column),
		float64Columns:   make(map[string]*column.Float64Column),
		boolColumns:      make(map[string]*column.BoolColumn),
		nucleotideStores: make(map[string]*sequence.Store[alphabet.Nucleotide]),
		aminoAcidStores:  make(map[string]*sequence.Store[alphabet.AminoAcid]),
		insertionNuc:     make(map[string]*insertion.Index),
		insertionAA:      make(map[string]*insertion.Index),
		lineageIndexes:   make(map[string]*lineage.Index),
	}

	for _, col := range schema.Columns {
		switch col.Type {
		case types.ColumnIndexedString:
			p.indexedStrings[col.Name] = column.NewIndexedString(dictionaries[col.Name].dict)
		case types.ColumnPangoLineageIndexedString:
			p.pangoColumns[col.Name] = column.NewPangoLineageIndexedString(dictionaries[col.Name].dict)
		case types.ColumnString:
			p.stringColumns[col.Name] = column.NewStringColumn()
		case types.ColumnDate:
			p.dateColumns[col.Name] = column.NewDateColumn()
		case types.ColumnInt32:
			p.int32Columns[col.Name] = column.NewInt32Column()
		case types.ColumnFloat64:
			p.float64Columns[col.Name] = column.NewFloat64Column()
		case types.ColumnBool:
			p.boolColumns[col.Name] = column.NewBoolColumn()
		case types.ColumnNucleotideSequence:
			ref := parseNucleotideReference(schema.ReferenceSequences[col.Name])
			p.nucleotideStores[col.Name] = sequence.NewStore[alphabet.Nucleotide](ref, alphabet.ParseNucleotide, alphabet.NucleotideAlphabetSize, true)
			p.insertionNuc[col.Name] = insertion.New()
		case types.ColumnAminoAcidSequence:
			ref := parseAminoAcidReference(schema.ReferenceSequences[col.Name])
			p.aminoAcidStores[col.Name] = sequence.NewStore[alphabet.AminoAcid](ref, alphabet.ParseAminoAcid, alphabet.AminoAcidAlphabetSize, true)
			p.insertionAA[col.Name] = insertion.New()
		case types.ColumnInsertionNuc, types.ColumnInsertionAA:
			// Insertion storage lives alongside its sequence store,
			// keyed by the sequence column name; no separate partition
			// field is allocated here.
		}
	}
	return p
}

func parseNucleotideReference(ref string) []alphabet.Nucleotide {
	out := make([]alphabet.Nucleotide, len(ref))
	for i := 0; i < len(ref); i++ {
		sym, ok := alphabet.ParseNucleotide(ref[i])
		if !ok {
			sym = alphabet.NucN
		}
		out[i] = sym
	}
	return out
}

func parseAminoAcidReference(ref string) []alphabet.AminoAcid {
	out := make([]alphabet.AminoAcid, len(ref))
	for i := 0; i < len(ref); i++ {
		sym, ok := alphabet.ParseAminoAcid(ref[i])
		if !ok {
			sym = alphabet.AAAny
		}
		out[i] = sym
	}
	return out
}

// ID returns the partition's identifier within its Table.
func (p *TablePartition) ID() types.PartitionID { return p.id }

// RowCount returns the number of rows appended so far.
func (p *TablePartition) RowCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rowCount
}

// IsFinalized reports whether Finalize has been called.
func (p *TablePartition) IsFinalized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.finalized
}

// IndexedString returns the named indexed-string column, if declared.
func (p *TablePartition) IndexedString(name string) (*column.IndexedString, bool) {
	c, ok := p.indexedStrings[name]
	return c, ok
}

// PangoLineage returns the named pango-lineage-indexed-string column.
func (p *TablePartition) PangoLineage(name string) (*column.PangoLineageIndexedString, bool) {
	c, ok := p.pangoColumns[name]
	return c, ok
}

// String returns the named free-text string column.
func (p *TablePartition) String(name string) (*column.StringColumn, bool) {
	c, ok := p.stringColumns[name]
	return c, ok
}

// Date returns the named date column.
func (p *TablePartition) Date(name string) (*column.DateColumn, bool) {
	c, ok := p.dateColumns[name]
	return c, ok
}

// Int32 returns the named int32 column.
func (p *TablePartition) Int32(name string) (*column.Int32Column, bool) {
	c, ok := p.int32Columns[name]
	return c, ok
}

// Float64 returns the named float64 column.
func (p *TablePartition) Float64(name string) (*column.Float64Column, bool) {
	c, ok := p.float64Columns[name]
	return c, ok
}

// Bool returns the named bool column.
func (p *TablePartition) Bool(name string) (*column.BoolColumn, bool) {
	c, ok := p.boolColumns[name]
	return c, ok
}

// NucleotideSequence returns the named nucleotide sequence store.
func (p *TablePartition) NucleotideSequence(name string) (*sequence.Store[alphabet.Nucleotide], bool) {
	s, ok := p.nucleotideStores[name]
	return s, ok
}

// AminoAcidSequence returns the named amino-acid sequence store.
func (p *TablePartition) AminoAcidSequence(name string) (*sequence.Store[alphabet.AminoAcid], bool) {
	s, ok := p.aminoAcidStores[name]
	return s, ok
}

// InsertionIndex returns the insertion index backing the named
// nucleotide or amino-acid sequence column.
func (p *TablePartition) InsertionIndex(sequenceName string) (*insertion.Index, bool) {
	if idx, ok := p.insertionNuc[sequenceName]; ok {
		return idx, true
	}
	if idx, ok := p.insertionAA[sequenceName]; ok {
		return idx, true
	}
	return nil, false
}

// LineageIndex returns the precomputed descendant index for the named
// pango-lineage column, built at Finalize.
func (p *TablePartition) LineageIndex(pangoColumn string) (*lineage.Index, bool) {
	idx, ok := p.lineageIndexes[pangoColumn]
	return idx, ok
}

// PhyloIndex returns the phylogenetic-tree descendant index, if one was
// attached to this partition at Finalize.
func (p *TablePartition) PhyloIndex() (*phylo.Index, bool) {
	if p.phyloIndex == nil {
		return nil, false
	}
	return p.phyloIndex, true
}
