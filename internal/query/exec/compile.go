package exec

import (
	"regexp"

	"github.com/standardbeagle/silo/internal/alphabet"
	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/column"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

// Compile binds an already-rewritten filter expression to one
// partition's column indexes, producing an Operator tree ready to
// Evaluate. SymbolEquals, HasMutation, Maybe, and Exact must not reach
// Compile: rewrite.Rewrite eliminates them first.
func Compile(e expr.Expression, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	n := partition.RowCount()
	switch node := e.(type) {
	case *expr.True:
		return fullOp{n: n}, nil
	case *expr.False:
		return emptyOp{}, nil
	case *expr.And:
		return compileAnd(node.Children, schema, partition, n)
	case *expr.Or:
		return compileOr(node.Children, schema, partition, n)
	case *expr.NOf:
		return compileNOf(node, schema, partition, n)
	case *expr.Not:
		child, err := Compile(node.Child, schema, partition)
		if err != nil {
			return nil, err
		}
		return complementOp{child: child, n: n}, nil
	case *expr.DateEquals:
		return compileDateEquals(node, schema, partition)
	case *expr.DateBetween:
		return compileDateBetween(node, schema, partition)
	case *expr.IntEquals:
		return compileIntCompare(node.Column, column.CompareEqual, node.Value, schema, partition)
	case *expr.IntBetween:
		return compileIntBetween(node, schema, partition, n)
	case *expr.FloatEquals:
		return compileFloatCompare(node.Column, column.CompareEqual, node.Value, schema, partition)
	case *expr.FloatBetween:
		return compileFloatBetween(node, schema, partition, n)
	case *expr.BoolEquals:
		return compileBoolEquals(node, schema, partition)
	case *expr.StringEquals:
		return compileStringEquals(node, schema, partition)
	case *expr.StringInSet:
		return compileStringInSet(node, schema, partition)
	case *expr.StringSearch:
		return compileStringSearch(node, schema, partition, n)
	case *expr.SymbolInSet:
		return compileSymbolInSet(node, partition)
	case *expr.InsertionContains:
		return compileInsertionContains(node, partition)
	case *expr.Lineage:
		return compileLineage(node, partition)
	case *expr.PhyloDescendantOf:
		return compilePhyloDescendantOf(node, partition)
	case *expr.IsNull:
		return compileIsNull(node, schema, partition)
	default:
		return nil, siloerrors.NewInternalError("exec.Compile", unresolvedNodeError{node: e})
	}
}

// unresolvedNodeError marks a node type Compile never expects to see
// directly: SymbolEquals, HasMutation, Maybe, and Exact are rewritten
// away before a filter ever reaches Compile.
type unresolvedNodeError struct{ node expr.Expression }

func (e unresolvedNodeError) Error() string {
	return "unresolved node reached Compile; rewrite.Rewrite must run first: " + e.node.ToString()
}

// compileAnd splits children into positive operators and the operators
// of Not-wrapped children, so intersectionOp can subtract the latter's
// bitmaps without ever materializing their complement.
func compileAnd(children []expr.Expression, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	var positive, negative []Operator
	for _, c := range children {
		if not, ok := c.(*expr.Not); ok {
			inner, err := Compile(not.Child, schema, partition)
			if err != nil {
				return nil, err
			}
			negative = append(negative, inner)
			continue
		}
		op, err := Compile(c, schema, partition)
		if err != nil {
			return nil, err
		}
		positive = append(positive, op)
	}
	return intersectionOp{positive: positive, negative: negative, n: n}, nil
}

// compileOr compiles a plain disjunction as a union. When any child is
// negated it instead applies De Morgan's law, Or(c...) =
// Complement(And(Not(c)...)), so the negated children's complements
// are never materialized either: double negation cancels them back
// into their inner operator inside compileAnd.
func compileOr(children []expr.Expression, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	hasNot := false
	for _, c := range children {
		if _, ok := c.(*expr.Not); ok {
			hasNot = true
			break
		}
	}
	if !hasNot {
		ops := make([]Operator, len(children))
		for i, c := range children {
			op, err := Compile(c, schema, partition)
			if err != nil {
				return nil, err
			}
			ops[i] = op
		}
		return unionOp{children: ops}, nil
	}
	negated := make([]expr.Expression, len(children))
	for i, c := range children {
		if not, ok := c.(*expr.Not); ok {
			negated[i] = not.Child
		} else {
			negated[i] = &expr.Not{Child: c}
		}
	}
	inner, err := compileAnd(negated, schema, partition, n)
	if err != nil {
		return nil, err
	}
	return complementOp{child: inner, n: n}, nil
}

func compileNOf(node *expr.NOf, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	var positive, negative []Operator
	for _, c := range node.Children {
		if not, ok := c.(*expr.Not); ok {
			inner, err := Compile(not.Child, schema, partition)
			if err != nil {
				return nil, err
			}
			negative = append(negative, inner)
			continue
		}
		op, err := Compile(c, schema, partition)
		if err != nil {
			return nil, err
		}
		positive = append(positive, op)
	}
	return thresholdOp{positive: positive, negative: negative, k: node.K, exactly: node.Exactly, n: n}, nil
}

// requireColumn resolves name to its declared type and reports an
// InvalidReference-shaped BadRequestError when it is missing or the
// wrong kind for the caller's field.
func requireColumn(schema *table.TableSchema, name string, want types.ColumnType) (types.ColumnIdentifier, error) {
	col, ok := schema.ColumnByName(name)
	if !ok {
		return types.ColumnIdentifier{}, siloerrors.NewBadRequestError(name, "unknown column")
	}
	if col.Type != want {
		return types.ColumnIdentifier{}, siloerrors.NewBadRequestError(name, "column is a "+col.Type.String()+", not a "+want.String())
	}
	return col, nil
}

func compileDateEquals(node *expr.DateEquals, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnDate); err != nil {
		return nil, err
	}
	col, _ := partition.Date(node.Column)
	return rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Between(node.Value, node.Value) }}, nil
}

func compileDateBetween(node *expr.DateBetween, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnDate); err != nil {
		return nil, err
	}
	col, _ := partition.Date(node.Column)
	from, to := dateBound(node.From, true), dateBound(node.To, false)
	return rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Between(from, to) }}, nil
}

func dateBound(d *types.Date, lower bool) types.Date {
	if d != nil {
		return *d
	}
	if lower {
		return types.Date(0)
	}
	return types.Date(1<<31 - 1)
}

func compileIntCompare(name string, op column.CompareOp, value int32, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	if _, err := requireColumn(schema, name, types.ColumnInt32); err != nil {
		return nil, err
	}
	col, _ := partition.Int32(name)
	return rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(op, value) }}, nil
}

func compileIntBetween(node *expr.IntBetween, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnInt32); err != nil {
		return nil, err
	}
	col, _ := partition.Int32(node.Column)
	var ops []Operator
	if node.From != nil {
		from := *node.From
		ops = append(ops, rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(column.CompareGreaterOrEqual, from) }})
	}
	if node.To != nil {
		to := *node.To
		ops = append(ops, rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(column.CompareLessOrEqual, to) }})
	}
	if len(ops) == 0 {
		return fullOp{n: n}, nil
	}
	return intersectionOp{positive: ops, n: n}, nil
}

func compileFloatCompare(name string, op column.CompareOp, value float64, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	if _, err := requireColumn(schema, name, types.ColumnFloat64); err != nil {
		return nil, err
	}
	col, _ := partition.Float64(name)
	return rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(op, value) }}, nil
}

func compileFloatBetween(node *expr.FloatBetween, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnFloat64); err != nil {
		return nil, err
	}
	col, _ := partition.Float64(node.Column)
	var ops []Operator
	if node.From != nil {
		from := *node.From
		ops = append(ops, rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(column.CompareGreaterOrEqual, from) }})
	}
	if node.To != nil {
		to := *node.To
		ops = append(ops, rangeSelectionOp{compute: func() *bitmap.Bitmap { return col.Compare(column.CompareLessOrEqual, to) }})
	}
	if len(ops) == 0 {
		return fullOp{n: n}, nil
	}
	return intersectionOp{positive: ops, n: n}, nil
}

func compileBoolEquals(node *expr.BoolEquals, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnBool); err != nil {
		return nil, err
	}
	col, _ := partition.Bool(node.Column)
	if node.Value {
		return indexScanOp{bm: col.TrueBitmap()}, nil
	}
	return indexScanOp{bm: col.FalseBitmap()}, nil
}

// compileStringEquals dispatches to the inverted-index lookup for an
// indexed_string column, or a row-scan Filter for a plain string
// column; an indexed lookup that misses the dictionary entirely
// compiles directly to the empty set, no scan needed.
func compileStringEquals(node *expr.StringEquals, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	col, ok := schema.ColumnByName(node.Column)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.Column, "unknown column")
	}
	switch col.Type {
	case types.ColumnIndexedString:
		c, _ := partition.IndexedString(node.Column)
		return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) {
			bm, ok := c.Filter(node.Value)
			if !ok {
				return bitmap.New(), nil
			}
			return bm, nil
		}}, nil
	case types.ColumnString:
		c, _ := partition.String(node.Column)
		return rangeSelectionOp{compute: func() *bitmap.Bitmap { return c.Filter(node.Value) }}, nil
	default:
		return nil, siloerrors.NewBadRequestError(node.Column, "column is a "+col.Type.String()+", not a string")
	}
}

func compileStringInSet(node *expr.StringInSet, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	children := make([]Operator, len(node.Values))
	for i, v := range node.Values {
		child, err := compileStringEquals(&expr.StringEquals{Column: node.Column, Value: v}, schema, partition)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return unionOp{children: children}, nil
}

// compileStringSearch row-scans a free-text column with Go's full
// regexp engine. Unlike InsertionContains, there is no n-gram index to
// prefilter against here, so the documented-subset restriction that
// protects the insertion trigram index does not apply: any valid RE2
// pattern is accepted.
func compileStringSearch(node *expr.StringSearch, schema *table.TableSchema, partition *table.TablePartition, n int) (Operator, error) {
	if _, err := requireColumn(schema, node.Column, types.ColumnString); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(node.Pattern)
	if err != nil {
		return nil, siloerrors.NewBadRequestError(node.Column, "invalid regular expression: "+err.Error())
	}
	col, _ := partition.String(node.Column)
	return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) {
		out := bitmap.New()
		for row := 0; row < n; row++ {
			value, ok := col.Value(types.RowID(row))
			if ok && re.MatchString(value) {
				out.Add(types.RowID(row))
			}
		}
		return out, nil
	}}, nil
}

// compileSymbolInSet looks up the sequence store directly rather than
// through schema, since rewrite has already resolved SequenceName to a
// concrete column; it still rejects an out-of-range position or an
// unrecognized symbol as a BadRequestError.
func compileSymbolInSet(node *expr.SymbolInSet, partition *table.TablePartition) (Operator, error) {
	if node.Kind == expr.AminoAcid {
		store, ok := partition.AminoAcidSequence(node.SequenceName)
		if !ok {
			return nil, siloerrors.NewBadRequestError(node.SequenceName, "unknown amino acid sequence column")
		}
		if node.Position < 0 || node.Position >= store.Length() {
			return nil, siloerrors.NewBadRequestError(node.SequenceName, "position out of range")
		}
		var bitmaps []*bitmap.Bitmap
		for _, sym := range node.Symbols {
			parsed, ok := alphabet.ParseAminoAcid(sym)
			if !ok {
				return nil, siloerrors.NewBadRequestError(node.SequenceName, "unrecognized amino acid symbol")
			}
			bitmaps = append(bitmaps, store.Bitmap(node.Position, parsed))
		}
		return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) { return bitmap.FastUnion(bitmaps), nil }}, nil
	}
	store, ok := partition.NucleotideSequence(node.SequenceName)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.SequenceName, "unknown nucleotide sequence column")
	}
	if node.Position < 0 || node.Position >= store.Length() {
		return nil, siloerrors.NewBadRequestError(node.SequenceName, "position out of range")
	}
	var bitmaps []*bitmap.Bitmap
	for _, sym := range node.Symbols {
		parsed, ok := alphabet.ParseNucleotide(sym)
		if !ok {
			return nil, siloerrors.NewBadRequestError(node.SequenceName, "unrecognized nucleotide symbol")
		}
		bitmaps = append(bitmaps, store.Bitmap(node.Position, parsed))
	}
	return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) { return bitmap.FastUnion(bitmaps), nil }}, nil
}

func compileInsertionContains(node *expr.InsertionContains, partition *table.TablePartition) (Operator, error) {
	idx, ok := partition.InsertionIndex(node.SequenceName)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.SequenceName, "unknown sequence column")
	}
	return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) {
		return idx.Search(node.SequenceName, node.Position, node.Pattern)
	}}, nil
}

func compileLineage(node *expr.Lineage, partition *table.TablePartition) (Operator, error) {
	col, ok := partition.PangoLineage(node.Column)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.Column, "unknown pango lineage column")
	}
	if node.Value == nil {
		return indexScanOp{bm: col.NullBitmap()}, nil
	}
	idx, ok := partition.LineageIndex(node.Column)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.Column, "no lineage tree attached to this column")
	}
	value := *node.Value
	mode := node.RecombinantMode
	includeSub := node.IncludeSublineages
	return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) {
		var (
			bm    *bitmap.Bitmap
			found bool
		)
		if includeSub {
			bm, found = col.FilterIncludingSublineages(value, mode, idx.AsDescendantsLookup())
			if !found {
				// The queried lineage was never stored as a row value, so
				// the shared dictionary can't resolve it; its descendants
				// may still hold rows, so resolve through the tree itself.
				bm, found = idx.LookupName(value, mode)
			}
		} else {
			bm, found = col.FilterExcludingSublineages(value)
		}
		if !found {
			return bitmap.New(), nil
		}
		return bm, nil
	}}, nil
}

func compilePhyloDescendantOf(node *expr.PhyloDescendantOf, partition *table.TablePartition) (Operator, error) {
	idx, ok := partition.PhyloIndex()
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.Column, "no phylogenetic tree attached to this partition")
	}
	return bitmapProducerOp{produce: func() (*bitmap.Bitmap, error) {
		bm, found := idx.Lookup(node.NodeID)
		if !found {
			return nil, siloerrors.NewBadRequestError(node.Column, "unknown phylogenetic node id: "+node.NodeID)
		}
		return bm, nil
	}}, nil
}

func compileIsNull(node *expr.IsNull, schema *table.TableSchema, partition *table.TablePartition) (Operator, error) {
	col, ok := schema.ColumnByName(node.Column)
	if !ok {
		return nil, siloerrors.NewBadRequestError(node.Column, "unknown column")
	}
	switch col.Type {
	case types.ColumnIndexedString:
		c, _ := partition.IndexedString(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnPangoLineageIndexedString:
		c, _ := partition.PangoLineage(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnString:
		c, _ := partition.String(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnDate:
		c, _ := partition.Date(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnInt32:
		c, _ := partition.Int32(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnFloat64:
		c, _ := partition.Float64(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnBool:
		c, _ := partition.Bool(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnNucleotideSequence:
		c, _ := partition.NucleotideSequence(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	case types.ColumnAminoAcidSequence:
		c, _ := partition.AminoAcidSequence(node.Column)
		return indexScanOp{bm: c.NullBitmap()}, nil
	default:
		return nil, siloerrors.NewBadRequestError(node.Column, "column type "+col.Type.String()+" has no null bitmap")
	}
}
