package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStringRendersNestedExpression(t *testing.T) {
	e := &And{Children: []Expression{
		&StringEquals{Column: "country", Value: "Switzerland"},
		&Not{Child: &IsNull{Column: "date"}},
	}}
	assert.Equal(t, `And(StringEquals(country, "Switzerland"), Not(IsNull(date)))`, e.ToString())
}

func TestDecodeStringEquals(t *testing.T) {
	data := []byte(`{"type":"StringEquals","column":"country","value":"Switzerland"}`)
	got, err := Decode(data, []string{"country"})
	require.NoError(t, err)
	se, ok := got.(*StringEquals)
	require.True(t, ok)
	assert.Equal(t, "country", se.Column)
	assert.Equal(t, "Switzerland", se.Value)
}

func TestDecodeOrWithThreeStringEquals(t *testing.T) {
	data := []byte(`{"type":"Or","children":[
		{"type":"StringEquals","column":"country","value":"CH"},
		{"type":"StringEquals","column":"country","value":"DE"},
		{"type":"StringEquals","column":"country","value":"FR"}
	]}`)
	got, err := Decode(data, []string{"country"})
	require.NoError(t, err)
	or, ok := got.(*Or)
	require.True(t, ok)
	assert.Len(t, or.Children, 3)
}

func TestDecodeNucleotideEqualsWithDot(t *testing.T) {
	data := []byte(`{"type":"NucleotideEquals","sequenceName":"main","position":2,"symbol":"."}`)
	got, err := Decode(data, nil)
	require.NoError(t, err)
	se, ok := got.(*SymbolEquals)
	require.True(t, ok)
	assert.True(t, se.IsDot)
	assert.Equal(t, 1, se.Position) // 1-indexed wire -> 0-indexed internal
	assert.Equal(t, Nucleotide, se.Kind)
}

func TestDecodeRejectsPositionZero(t *testing.T) {
	data := []byte(`{"type":"NucleotideEquals","sequenceName":"main","position":0,"symbol":"A"}`)
	_, err := Decode(data, nil)
	assert.Error(t, err)
}

func TestDecodeLineageWithRecombinantMode(t *testing.T) {
	data := []byte(`{"type":"Lineage","column":"pango_lineage","value":"BA.1","includeSublineages":true,"recombinantFollowingMode":"followIfFullyContainedInClade"}`)
	got, err := Decode(data, []string{"pango_lineage"})
	require.NoError(t, err)
	lin, ok := got.(*Lineage)
	require.True(t, ok)
	require.NotNil(t, lin.Value)
	assert.Equal(t, "BA.1", *lin.Value)
	assert.True(t, lin.IncludeSublineages)
}

func TestDecodeUnknownColumnSuggestsNearest(t *testing.T) {
	data := []byte(`{"type":"StringEquals","column":"contry","value":"CH"}`)
	_, err := Decode(data, []string{"country"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")
}

func TestDecodeUnknownNodeType(t *testing.T) {
	data := []byte(`{"type":"NotARealNode"}`)
	_, err := Decode(data, nil)
	assert.Error(t, err)
}

func TestDecodeDateBetween(t *testing.T) {
	data := []byte(`{"type":"DateBetween","column":"date","from":"2024-01-03","to":"2024-01-05"}`)
	got, err := Decode(data, []string{"date"})
	require.NoError(t, err)
	db, ok := got.(*DateBetween)
	require.True(t, ok)
	require.NotNil(t, db.From)
	require.NotNil(t, db.To)
}
