// Package rewrite implements Component K: the fixed-point simplification
// pass over a filter-expression tree. It flattens And/Or, constant-folds
// True/False, threads ambiguity mode through Not/Maybe/Exact, merges
// sibling equality predicates into *InSet nodes, expands exact-NOf into
// And/Not, resolves default sequence names and dot symbols, and finally
// eliminates Maybe/Exact once their mode has been applied.
package rewrite

import (
	"fmt"

	"github.com/standardbeagle/silo/internal/alphabet"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/table"
)

// Schema is the view of a table schema Rewrite needs: column lookup,
// reference sequences, and default sequence names. table.TableSchema
// satisfies this directly.
type Schema interface {
	ReferenceSequence(kind table.SequenceKind, name string) (string, bool)
	DefaultSequenceName(kind table.SequenceKind) string
}

// maxPasses bounds the fixed-point loop; the rule set is confluent and
// strictly size-reducing or name-resolving, so it converges in a handful
// of passes for any realistic query tree. Hitting the bound indicates a
// bug in a rule rather than a legitimately large query.
const maxPasses = 16

// Rewrite simplifies e to a fixed point under the given top-level
// ambiguity mode, resolving default sequence names, dot symbols, and
// ambiguity bounds against schema.
func Rewrite(e expr.Expression, schema Schema, mode expr.AmbiguityMode) (expr.Expression, error) {
	current := e
	for i := 0; i < maxPasses; i++ {
		next, err := rewriteOnce(current, schema, mode)
		if err != nil {
			return nil, err
		}
		if next.ToString() == current.ToString() {
			return next, nil
		}
		current = next
	}
	return current, fmt.Errorf("rewrite did not reach a fixed point within %d passes", maxPasses)
}

func toTableKind(k expr.SequenceKind) table.SequenceKind {
	if k == expr.AminoAcid {
		return table.KindAminoAcid
	}
	return table.KindNucleotide
}

func rewriteOnce(e expr.Expression, schema Schema, mode expr.AmbiguityMode) (expr.Expression, error) {
	switch n := e.(type) {
	case *expr.True:
		return n, nil
	case *expr.False:
		return n, nil

	case *expr.And:
		children, err := rewriteAll(n.Children, schema, mode)
		if err != nil {
			return nil, err
		}
		return foldAnd(children), nil

	case *expr.Or:
		children, err := rewriteAll(n.Children, schema, mode)
		if err != nil {
			return nil, err
		}
		return foldOr(mergeOr(children)), nil

	case *expr.NOf:
		children, err := rewriteAll(n.Children, schema, mode)
		if err != nil {
			return nil, err
		}
		if n.Exactly && mode != expr.AmbiguityNone {
			atLeastK := atLeast(children, n.K)
			notAtLeastK1 := &expr.Not{Child: atLeast(children, n.K+1)}
			return &expr.And{Children: []expr.Expression{atLeastK, notAtLeastK1}}, nil
		}
		return &expr.NOf{Children: children, K: n.K, Exactly: n.Exactly}, nil

	case *expr.Not:
		child, err := rewriteOnce(n.Child, schema, mode.Invert())
		if err != nil {
			return nil, err
		}
		switch child.(type) {
		case *expr.True:
			return &expr.False{}, nil
		case *expr.False:
			return &expr.True{}, nil
		}
		return &expr.Not{Child: child}, nil

	case *expr.Maybe:
		return rewriteOnce(n.Child, schema, expr.AmbiguityUpper)

	case *expr.Exact:
		return rewriteOnce(n.Child, schema, expr.AmbiguityLower)

	case *expr.SymbolEquals:
		return rewriteSymbolEquals(n, schema, mode)

	case *expr.SymbolInSet:
		seqName, err := resolveSeqName(n.Kind, n.SequenceName, schema)
		if err != nil {
			return nil, err
		}
		return &expr.SymbolInSet{Kind: n.Kind, SequenceName: seqName, Position: n.Position, Symbols: n.Symbols}, nil

	case *expr.HasMutation:
		return rewriteHasMutation(n, schema, mode)

	case *expr.InsertionContains:
		seqName, err := resolveSeqName(n.Kind, n.SequenceName, schema)
		if err != nil {
			return nil, err
		}
		return &expr.InsertionContains{Kind: n.Kind, SequenceName: seqName, Position: n.Position, Pattern: n.Pattern}, nil

	default:
		// Leaf predicates with no children and no ambiguity or sequence-name
		// concerns (DateBetween, DateEquals, IntEquals, FloatEquals,
		// BoolEquals, StringEquals, IntBetween, FloatBetween, StringInSet,
		// StringSearch, Lineage, PhyloDescendantOf, IsNull) are already in
		// normal form.
		return e, nil
	}
}

func rewriteAll(children []expr.Expression, schema Schema, mode expr.AmbiguityMode) ([]expr.Expression, error) {
	out := make([]expr.Expression, len(children))
	for i, c := range children {
		r, err := rewriteOnce(c, schema, mode)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// foldAnd flattens nested Ands, drops True, short-circuits on False, and
// collapses to the identity/singleton element.
func foldAnd(children []expr.Expression) expr.Expression {
	flat := make([]expr.Expression, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*expr.And); ok {
			flat = append(flat, inner.Children...)
			continue
		}
		flat = append(flat, c)
	}
	kept := flat[:0]
	for _, c := range flat {
		if _, ok := c.(*expr.True); ok {
			continue
		}
		if _, ok := c.(*expr.False); ok {
			return &expr.False{}
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return &expr.True{}
	case 1:
		return kept[0]
	default:
		return &expr.And{Children: kept}
	}
}

// foldOr flattens nested Ors, drops False, short-circuits on True, and
// collapses to the identity/singleton element.
func foldOr(children []expr.Expression) expr.Expression {
	flat := make([]expr.Expression, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*expr.Or); ok {
			flat = append(flat, inner.Children...)
			continue
		}
		flat = append(flat, c)
	}
	kept := flat[:0]
	for _, c := range flat {
		if _, ok := c.(*expr.False); ok {
			continue
		}
		if _, ok := c.(*expr.True); ok {
			return &expr.True{}
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return &expr.False{}
	case 1:
		return kept[0]
	default:
		return &expr.Or{Children: kept}
	}
}

// mergeOr collects SymbolInSet siblings sharing (kind, sequence name,
// position) into one SymbolInSet, and StringEquals/StringInSet siblings
// sharing a column into one StringInSet. By the time mergeOr runs, any
// sibling SymbolEquals has already been turned into a single-symbol
// SymbolInSet by the per-child rewrite pass, so only one symbol case is
// needed here.
func mergeOr(children []expr.Expression) []expr.Expression {
	type symKey struct {
		kind expr.SequenceKind
		seq  string
		pos  int
	}
	symGroups := make(map[symKey]*expr.SymbolInSet)
	var symOrder []symKey

	strGroups := make(map[string]*expr.StringInSet)
	var strOrder []string

	out := make([]expr.Expression, 0, len(children))
	for _, c := range children {
		switch v := c.(type) {
		case *expr.SymbolInSet:
			k := symKey{v.Kind, v.SequenceName, v.Position}
			g, ok := symGroups[k]
			if !ok {
				g = &expr.SymbolInSet{Kind: v.Kind, SequenceName: v.SequenceName, Position: v.Position}
				symGroups[k] = g
				symOrder = append(symOrder, k)
			}
			for _, s := range v.Symbols {
				g.Symbols = appendByteUnique(g.Symbols, s)
			}
		case *expr.StringEquals:
			g, ok := strGroups[v.Column]
			if !ok {
				g = &expr.StringInSet{Column: v.Column}
				strGroups[v.Column] = g
				strOrder = append(strOrder, v.Column)
			}
			g.Values = appendStringUnique(g.Values, v.Value)
		case *expr.StringInSet:
			g, ok := strGroups[v.Column]
			if !ok {
				g = &expr.StringInSet{Column: v.Column}
				strGroups[v.Column] = g
				strOrder = append(strOrder, v.Column)
			}
			for _, s := range v.Values {
				g.Values = appendStringUnique(g.Values, s)
			}
		default:
			out = append(out, c)
		}
	}
	// Groups with only one contributing member still simplify cleanly via
	// foldOr/decode's normal representation, so they're emitted regardless
	// of size; a singleton *InSet is equivalent to its source predicate.
	for _, k := range symOrder {
		out = append(out, symGroups[k])
	}
	for _, col := range strOrder {
		out = append(out, strGroups[col])
	}
	return out
}

func appendByteUnique(set []byte, b byte) []byte {
	for _, s := range set {
		if s == b {
			return set
		}
	}
	return append(set, b)
}

func appendStringUnique(set []string, s string) []string {
	for _, v := range set {
		if v == s {
			return set
		}
	}
	return append(set, s)
}

// atLeast builds the threshold node for "at least k of children", with
// the degenerate bounds folded directly: k<=0 is vacuously true, k
// greater than the number of children is impossible.
func atLeast(children []expr.Expression, k int) expr.Expression {
	if k <= 0 {
		return &expr.True{}
	}
	if k > len(children) {
		return &expr.False{}
	}
	return &expr.NOf{Children: children, K: k}
}

func resolveSeqName(kind expr.SequenceKind, name string, schema Schema) (string, error) {
	if name != "" {
		return name, nil
	}
	def := schema.DefaultSequenceName(toTableKind(kind))
	if def == "" {
		return "", siloerrors.NewBadRequestError("sequenceName", fmt.Sprintf("no default %s sequence configured", kind))
	}
	return def, nil
}

func referenceByte(kind expr.SequenceKind, seqName string, position int, schema Schema) (byte, error) {
	ref, ok := schema.ReferenceSequence(toTableKind(kind), seqName)
	if !ok {
		return 0, siloerrors.NewBadRequestError("sequenceName", fmt.Sprintf("unknown %s sequence %q", kind, seqName))
	}
	if position < 0 || position >= len(ref) {
		return 0, siloerrors.NewBadRequestError("position", fmt.Sprintf("position %d out of range for sequence %q of length %d", position+1, seqName, len(ref)))
	}
	return ref[position], nil
}

func rewriteSymbolEquals(n *expr.SymbolEquals, schema Schema, mode expr.AmbiguityMode) (expr.Expression, error) {
	seqName, err := resolveSeqName(n.Kind, n.SequenceName, schema)
	if err != nil {
		return nil, err
	}
	// referenceByte doubles as the position bounds check, so an
	// out-of-range position surfaces here as a BadRequestError instead
	// of indexing past a position-bitmap slice at compile time.
	refSym, err := referenceByte(n.Kind, seqName, n.Position, schema)
	if err != nil {
		return nil, err
	}
	sym := n.Symbol
	if n.IsDot {
		sym = refSym
	}
	if mode == expr.AmbiguityUpper {
		expansion, err := ambiguityExpansionBytes(n.Kind, sym)
		if err != nil {
			return nil, err
		}
		return &expr.SymbolInSet{Kind: n.Kind, SequenceName: seqName, Position: n.Position, Symbols: expansion}, nil
	}
	return &expr.SymbolInSet{Kind: n.Kind, SequenceName: seqName, Position: n.Position, Symbols: []byte{sym}}, nil
}

// rewriteHasMutation builds the set of stored symbols that count as a
// mutation and returns it as a SymbolInSet union, not a Not/complement
// over the whole partition: a complement includes every row the child
// doesn't select, and a null sequence value is never added to any
// per-symbol bitmap (internal/sequence), so it would wrongly surface as
// a mutation match if SymbolInSet{ref} were simply negated. Building
// the complement alphabet up front and unioning its per-symbol bitmaps
// keeps null rows out the same way the source's has_mutation predicate
// does, by construction rather than by subtraction.
func rewriteHasMutation(n *expr.HasMutation, schema Schema, mode expr.AmbiguityMode) (expr.Expression, error) {
	seqName, err := resolveSeqName(n.Kind, n.SequenceName, schema)
	if err != nil {
		return nil, err
	}
	ref, err := referenceByte(n.Kind, seqName, n.Position, schema)
	if err != nil {
		return nil, err
	}
	effective := mode
	if effective == expr.AmbiguityNone {
		// The source only ever drives HasMutation through Maybe/Exact;
		// queries that skip both default to the possibility reading.
		effective = expr.AmbiguityUpper
	}
	notMutated := []byte{ref}
	if effective == expr.AmbiguityLower {
		notMutated, err = possiblyEqualSymbols(n.Kind, ref)
		if err != nil {
			return nil, err
		}
	}
	return &expr.SymbolInSet{
		Kind: n.Kind, SequenceName: seqName, Position: n.Position,
		Symbols: complementSymbols(n.Kind, notMutated),
	}, nil
}

// complementSymbols returns every alphabet symbol of kind not in
// exclude, in enum order.
func complementSymbols(kind expr.SequenceKind, exclude []byte) []byte {
	excluded := func(b byte) bool {
		for _, e := range exclude {
			if e == b {
				return true
			}
		}
		return false
	}
	if kind == expr.AminoAcid {
		out := make([]byte, 0, alphabet.AminoAcidAlphabetSize)
		for i := 0; i < alphabet.AminoAcidAlphabetSize; i++ {
			if b := alphabet.AminoAcid(i).String()[0]; !excluded(b) {
				out = append(out, b)
			}
		}
		return out
	}
	out := make([]byte, 0, alphabet.NucleotideAlphabetSize)
	for i := 0; i < alphabet.NucleotideAlphabetSize; i++ {
		if b := alphabet.Nucleotide(i).String()[0]; !excluded(b) {
			out = append(out, b)
		}
	}
	return out
}

// ambiguityExpansionBytes returns the wire-byte encoding of sym's
// ambiguity expansion: every concrete symbol sym may represent.
func ambiguityExpansionBytes(kind expr.SequenceKind, sym byte) ([]byte, error) {
	if kind == expr.AminoAcid {
		a, ok := alphabet.ParseAminoAcid(sym)
		if !ok {
			return nil, siloerrors.NewBadRequestError("symbol", fmt.Sprintf("unknown amino acid symbol %q", string(sym)))
		}
		out := make([]byte, 0, len(a.AmbiguityExpansion()))
		for _, e := range a.AmbiguityExpansion() {
			out = append(out, e.String()[0])
		}
		return out, nil
	}
	n, ok := alphabet.ParseNucleotide(sym)
	if !ok {
		return nil, siloerrors.NewBadRequestError("symbol", fmt.Sprintf("unknown nucleotide symbol %q", string(sym)))
	}
	out := make([]byte, 0, len(n.AmbiguityExpansion()))
	for _, e := range n.AmbiguityExpansion() {
		out = append(out, e.String()[0])
	}
	return out, nil
}

// possiblyEqualSymbols returns every alphabet symbol (ambiguity codes
// included) whose own ambiguity expansion contains ref: the set of
// stored values a row could hold while still possibly being ref.
func possiblyEqualSymbols(kind expr.SequenceKind, ref byte) ([]byte, error) {
	if kind == expr.AminoAcid {
		target, ok := alphabet.ParseAminoAcid(ref)
		if !ok {
			return nil, siloerrors.NewBadRequestError("symbol", fmt.Sprintf("unknown amino acid symbol %q", string(ref)))
		}
		var out []byte
		for i := 0; i < alphabet.AminoAcidAlphabetSize; i++ {
			candidate := alphabet.AminoAcid(i)
			if containsAA(candidate.AmbiguityExpansion(), target) {
				out = append(out, candidate.String()[0])
			}
		}
		return out, nil
	}
	target, ok := alphabet.ParseNucleotide(ref)
	if !ok {
		return nil, siloerrors.NewBadRequestError("symbol", fmt.Sprintf("unknown nucleotide symbol %q", string(ref)))
	}
	var out []byte
	for i := 0; i < alphabet.NucleotideAlphabetSize; i++ {
		candidate := alphabet.Nucleotide(i)
		if containsNuc(candidate.AmbiguityExpansion(), target) {
			out = append(out, candidate.String()[0])
		}
	}
	return out, nil
}

func containsNuc(set []alphabet.Nucleotide, target alphabet.Nucleotide) bool {
	for _, s := range set {
		if s == target {
			return true
		}
	}
	return false
}

func containsAA(set []alphabet.AminoAcid, target alphabet.AminoAcid) bool {
	for _, s := range set {
		if s == target {
			return true
		}
	}
	return false
}
