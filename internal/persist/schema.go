package persist

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

// schemaDoc mirrors table.TableSchema field-for-field. A standalone
// type keeps the yaml struct tags out of the table package, which has
// no reason to know how it is persisted.
type schemaDoc struct {
	PrimaryKey                string             `yaml:"primary_key"`
	Columns                   []columnDoc        `yaml:"columns"`
	ReferenceSequences        map[string]string  `yaml:"reference_sequences"`
	DefaultNucleotideSequence string             `yaml:"default_nucleotide_sequence,omitempty"`
	DefaultAminoAcidSequence  string             `yaml:"default_amino_acid_sequence,omitempty"`
}

type columnDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

var columnTypeByName = map[string]types.ColumnType{
	"indexed_string":               types.ColumnIndexedString,
	"string":                       types.ColumnString,
	"date":                         types.ColumnDate,
	"int32":                        types.ColumnInt32,
	"float64":                      types.ColumnFloat64,
	"bool":                         types.ColumnBool,
	"nucleotide_sequence":          types.ColumnNucleotideSequence,
	"amino_acid_sequence":          types.ColumnAminoAcidSequence,
	"insertion_nuc":                types.ColumnInsertionNuc,
	"insertion_aa":                 types.ColumnInsertionAA,
	"pango_lineage_indexed_string": types.ColumnPangoLineageIndexedString,
}

const schemaFileName = "schema.yaml"

// WriteSchema serializes schema to <dir>/schema.yaml.
func WriteSchema(dir string, schema *table.TableSchema) error {
	doc := schemaDoc{
		PrimaryKey:                schema.PrimaryKey,
		ReferenceSequences:        schema.ReferenceSequences,
		DefaultNucleotideSequence: schema.DefaultNucleotideSequence,
		DefaultAminoAcidSequence:  schema.DefaultAminoAcidSequence,
	}
	for _, col := range schema.Columns {
		doc.Columns = append(doc.Columns, columnDoc{Name: col.Name, Type: col.Type.String()})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, schemaFileName), out, 0o644)
}

// ReadSchema deserializes <dir>/schema.yaml back into a TableSchema.
func ReadSchema(dir string) (*table.TableSchema, error) {
	data, err := os.ReadFile(filepath.Join(dir, schemaFileName))
	if err != nil {
		return nil, err
	}
	var doc schemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	columns := make([]types.ColumnIdentifier, 0, len(doc.Columns))
	for _, c := range doc.Columns {
		t, ok := columnTypeByName[c.Type]
		if !ok {
			t = types.ColumnUnknown
		}
		columns = append(columns, types.ColumnIdentifier{Name: c.Name, Type: t})
	}
	return table.NewTableSchema(doc.PrimaryKey, columns, doc.ReferenceSequences,
		doc.DefaultNucleotideSequence, doc.DefaultAminoAcidSequence)
}
