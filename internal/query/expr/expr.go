// Package expr defines the closed set of filter-expression node types
// queries are built from. Every node has exactly two capabilities: it
// can render itself for logs (ToString) and it closes the node
// interface so no new variant can be added outside this package. The
// rewrite and compile passes over these nodes live in
// internal/query/rewrite and internal/query/exec respectively, each
// dispatching on the concrete type with a type switch.
package expr

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/silo/internal/column"
	"github.com/standardbeagle/silo/internal/types"
)

// Expression is the closed node interface. isNode() is unexported so no
// package outside expr can introduce a new variant.
type Expression interface {
	ToString() string
	isNode()
}

// node is embedded into every concrete type to satisfy Expression's
// closing method with no per-type boilerplate.
type node struct{}

func (node) isNode() {}

// SequenceKind distinguishes which alphabet a sequence-targeting node
// operates over, since Go generics don't survive a JSON type switch.
type SequenceKind uint8

const (
	Nucleotide SequenceKind = iota
	AminoAcid
)

func (k SequenceKind) String() string {
	if k == AminoAcid {
		return "amino acid"
	}
	return "nucleotide"
}

// AmbiguityMode controls how a sequence predicate treats ambiguity
// codes (e.g. nucleotide N) during rewrite.
type AmbiguityMode uint8

const (
	// AmbiguityNone matches the literal requested symbol only.
	AmbiguityNone AmbiguityMode = iota
	// AmbiguityUpper matches any ambiguity code that could possibly be
	// the target symbol (the "maybe" reading).
	AmbiguityUpper
	// AmbiguityLower matches only when certain (the "exact" reading).
	AmbiguityLower
)

// Invert swaps Upper and Lower, used when rewrite pushes a mode
// through a Not.
func (m AmbiguityMode) Invert() AmbiguityMode {
	switch m {
	case AmbiguityUpper:
		return AmbiguityLower
	case AmbiguityLower:
		return AmbiguityUpper
	default:
		return AmbiguityNone
	}
}

// True always matches every row in a partition.
type True struct{ node }

// False never matches any row.
type False struct{ node }

// And is the conjunction of Children; rewrite flattens nested Ands,
// drops True, and short-circuits on a False child.
type And struct {
	node
	Children []Expression
}

// Or is the disjunction of Children; rewrite flattens nested Ors,
// drops False, short-circuits on a True child, and merges compatible
// siblings into a single SymbolInSet/StringInSet.
type Or struct {
	node
	Children []Expression
}

// NOf is a threshold: at least K children must match (exactly K when
// Exactly is set).
type NOf struct {
	node
	Children []Expression
	K        int
	Exactly  bool
}

// Not complements its child and inverts the ambiguity mode threaded
// through it during rewrite.
type Not struct {
	node
	Child Expression
}

// Maybe sets the ambiguity mode to Upper for Child, then is eliminated
// by rewrite.
type Maybe struct {
	node
	Child Expression
}

// Exact sets the ambiguity mode to Lower for Child, then is eliminated
// by rewrite.
type Exact struct {
	node
	Child Expression
}

// DateBetween selects rows whose Column value falls in [From, To]. A
// nil bound is unbounded on that side.
type DateBetween struct {
	node
	Column   string
	From, To *types.Date
}

// DateEquals selects rows whose Column equals Value exactly.
type DateEquals struct {
	node
	Column string
	Value  types.Date
}

// IntEquals selects rows whose int32 Column equals Value.
type IntEquals struct {
	node
	Column string
	Value  int32
}

// FloatEquals selects rows whose float64 Column equals Value.
type FloatEquals struct {
	node
	Column string
	Value  float64
}

// BoolEquals selects rows whose bool Column equals Value.
type BoolEquals struct {
	node
	Column string
	Value  bool
}

// StringEquals selects rows whose Column equals Value. Compile turns
// this into an IndexScan when Column is indexed.
type StringEquals struct {
	node
	Column string
	Value  string
}

// IntBetween selects rows whose int32 Column falls in [From, To].
type IntBetween struct {
	node
	Column   string
	From, To *int32
}

// FloatBetween selects rows whose float64 Column falls in [From, To].
type FloatBetween struct {
	node
	Column   string
	From, To *float64
}

// StringInSet selects rows whose Column equals any of Values. On an
// indexed column this compiles to a union of IndexScans.
type StringInSet struct {
	node
	Column string
	Values []string
}

// StringSearch selects rows whose Column matches the bounded regex
// Pattern (see internal/insertion for the accepted subset).
type StringSearch struct {
	node
	Column  string
	Pattern string
}

// SymbolEquals selects rows whose sequence symbol at Position equals
// Symbol. IsDot resolves Symbol to the reference symbol at Position
// during rewrite rather than at decode time.
type SymbolEquals struct {
	node
	Kind         SequenceKind
	SequenceName string // "" resolves to the schema default at rewrite
	Position     int    // 0-indexed internally
	Symbol       byte
	IsDot        bool
}

// SymbolInSet selects rows whose sequence symbol at Position is any of
// Symbols. This is what SymbolEquals and HasMutation rewrite into.
type SymbolInSet struct {
	node
	Kind         SequenceKind
	SequenceName string
	Position     int
	Symbols      []byte
}

// HasMutation selects rows whose symbol at Position differs from the
// reference, under the threaded ambiguity mode.
type HasMutation struct {
	node
	Kind         SequenceKind
	SequenceName string
	Position     int
}

// InsertionContains selects rows with an insertion at Position whose
// text matches Pattern, delegating to internal/insertion.Index.
type InsertionContains struct {
	node
	Kind         SequenceKind
	SequenceName string
	Position     int
	Pattern      string
}

// Lineage selects rows assigned to the named lineage in Column. A nil
// Value means IsNull semantics (the column's null bitmap).
type Lineage struct {
	node
	Column             string
	Value              *string
	IncludeSublineages bool
	RecombinantMode    column.RecombinantMode
}

// PhyloDescendantOf selects rows whose Column value names a node that
// is NodeID or one of its phylogenetic descendants.
type PhyloDescendantOf struct {
	node
	Column string
	NodeID string
}

// IsNull selects rows whose Column has no value.
type IsNull struct {
	node
	Column string
}

func (True) ToString() string  { return "True" }
func (False) ToString() string { return "False" }

func (e *And) ToString() string {
	return fmt.Sprintf("And(%s)", joinChildren(e.Children))
}

func (e *Or) ToString() string {
	return fmt.Sprintf("Or(%s)", joinChildren(e.Children))
}

func (e *NOf) ToString() string {
	op := "≥"
	if e.Exactly {
		op = "="
	}
	return fmt.Sprintf("NOf(%s%d, %s)", op, e.K, joinChildren(e.Children))
}

func (e *Not) ToString() string   { return fmt.Sprintf("Not(%s)", e.Child.ToString()) }
func (e *Maybe) ToString() string { return fmt.Sprintf("Maybe(%s)", e.Child.ToString()) }
func (e *Exact) ToString() string { return fmt.Sprintf("Exact(%s)", e.Child.ToString()) }

func (e *DateBetween) ToString() string {
	return fmt.Sprintf("DateBetween(%s, %s, %s)", e.Column, dateBoundString(e.From), dateBoundString(e.To))
}

func (e *DateEquals) ToString() string {
	return fmt.Sprintf("DateEquals(%s, %s)", e.Column, e.Value.String())
}
func (e *IntEquals) ToString() string   { return fmt.Sprintf("IntEquals(%s, %d)", e.Column, e.Value) }
func (e *FloatEquals) ToString() string { return fmt.Sprintf("FloatEquals(%s, %g)", e.Column, e.Value) }
func (e *BoolEquals) ToString() string  { return fmt.Sprintf("BoolEquals(%s, %t)", e.Column, e.Value) }
func (e *StringEquals) ToString() string {
	return fmt.Sprintf("StringEquals(%s, %q)", e.Column, e.Value)
}

func (e *IntBetween) ToString() string {
	return fmt.Sprintf("IntBetween(%s, %v, %v)", e.Column, e.From, e.To)
}

func (e *FloatBetween) ToString() string {
	return fmt.Sprintf("FloatBetween(%s, %v, %v)", e.Column, e.From, e.To)
}

func (e *StringInSet) ToString() string {
	return fmt.Sprintf("StringInSet(%s, {%s})", e.Column, strings.Join(e.Values, ", "))
}

func (e *StringSearch) ToString() string {
	return fmt.Sprintf("StringSearch(%s, /%s/)", e.Column, e.Pattern)
}

func (e *SymbolEquals) ToString() string {
	sym := string(e.Symbol)
	if e.IsDot {
		sym = "."
	}
	return fmt.Sprintf("SymbolEquals<%s>(%s, %d, %s)", e.Kind, e.SequenceName, e.Position, sym)
}

func (e *SymbolInSet) ToString() string {
	return fmt.Sprintf("SymbolInSet<%s>(%s, %d, %s)", e.Kind, e.SequenceName, e.Position, string(e.Symbols))
}

func (e *HasMutation) ToString() string {
	return fmt.Sprintf("HasMutation<%s>(%s, %d)", e.Kind, e.SequenceName, e.Position)
}

func (e *InsertionContains) ToString() string {
	return fmt.Sprintf("InsertionContains<%s>(%s, %d, /%s/)", e.Kind, e.SequenceName, e.Position, e.Pattern)
}

func (e *Lineage) ToString() string {
	value := "null"
	if e.Value != nil {
		value = *e.Value
	}
	return fmt.Sprintf("Lineage(%s, %s, sublineages=%t, mode=%d)", e.Column, value, e.IncludeSublineages, e.RecombinantMode)
}

func (e *PhyloDescendantOf) ToString() string {
	return fmt.Sprintf("PhyloDescendantOf(%s, %s)", e.Column, e.NodeID)
}

func (e *IsNull) ToString() string { return fmt.Sprintf("IsNull(%s)", e.Column) }

func joinChildren(children []Expression) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.ToString()
	}
	return strings.Join(parts, ", ")
}

func dateBoundString(d *types.Date) string {
	if d == nil {
		return "-inf"
	}
	return d.String()
}
