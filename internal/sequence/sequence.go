// Package sequence implements the per-position, per-symbol bitmap index
// over aligned nucleotide or amino-acid sequences (Component E). One
// Store exists per sequence column per partition; Store is generic over
// the symbol alphabet so the same code serves both nucleotide and
// amino-acid columns.
package sequence

import (
	"fmt"
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

// Symbol is the constraint any sequence alphabet must satisfy: a small
// uint8-based enum whose AmbiguityExpansion names every concrete symbol
// it may represent.
type Symbol[S any] interface {
	~uint8
	AmbiguityExpansion() []S
}

// ParseFunc decodes one raw sequence character into a Symbol.
type ParseFunc[S any] func(byte) (S, bool)

// Store is the per-partition, per-sequence-column position-bitmap
// index. Rows whose symbol at a position equals the reference symbol
// are omitted from every bitmap when referenceImplicit is set; Bitmap
// reconstructs the implicit set on read by complementing the explicit
// symbols already stored for that position.
type Store[S Symbol[S]] struct {
	reference         []S
	parse             ParseFunc[S]
	symbolCount       int
	referenceImplicit bool

	mu        sync.RWMutex
	rowCount  int
	position  [][]*bitmap.CopyOnWriteBitmap // [position][symbol]
	nullRows  *bitmap.Bitmap
}

// NewStore creates an empty Store for a reference sequence of the given
// symbols, using parse to decode each inserted character and
// symbolCount as the dense upper bound on a Symbol's integer value.
func NewStore[S Symbol[S]](reference []S, parse ParseFunc[S], symbolCount int, referenceImplicit bool) *Store[S] {
	position := make([][]*bitmap.CopyOnWriteBitmap, len(reference))
	for p := range position {
		row := make([]*bitmap.CopyOnWriteBitmap, symbolCount)
		for s := range row {
			row[s] = bitmap.Own(bitmap.New())
		}
		position[p] = row
	}
	return &Store[S]{
		reference:         append([]S(nil), reference...),
		parse:             parse,
		symbolCount:       symbolCount,
		referenceImplicit: referenceImplicit,
		position:          position,
		nullRows:          bitmap.New(),
	}
}

// Length returns the reference length, i.e. the number of positions.
func (s *Store[S]) Length() int { return len(s.reference) }

// ReferenceSymbol returns the reference's symbol at position p.
func (s *Store[S]) ReferenceSymbol(p int) S { return s.reference[p] }

// ReferenceImplicit reports whether rows matching the reference at a
// position are omitted from storage.
func (s *Store[S]) ReferenceImplicit() bool { return s.referenceImplicit }

// Validate reports whether sequence is a legal value for this store
// (correct length, every character a recognized symbol) without
// indexing anything. Insert runs Validate before writing any bitmap,
// so it cannot fail midway through writing a row's bitmaps.
func (s *Store[S]) Validate(sequence string, rowInBatch int) error {
	if len(sequence) != len(s.reference) {
		underlying := fmt.Errorf("expected length %d, got %d", len(s.reference), len(sequence))
		return siloerrors.NewAppendError(siloerrors.AppendBadLength, underlying).WithRowInBatch(rowInBatch)
	}
	for p := 0; p < len(sequence); p++ {
		if _, ok := s.parse(sequence[p]); !ok {
			return siloerrors.NewAppendError(siloerrors.AppendIllegalSymbol, nil).
				WithPosition(rune(sequence[p]), p, rowInBatch)
		}
	}
	return nil
}

// Insert indexes one aligned sequence, returning the row id assigned
// to it. Insert checks length and symbol legality with Validate before
// the position loop, since a failure partway through that loop would
// leave earlier positions' bitmaps carrying an entry for a row that
// never advanced rowCount. rowInBatch is carried
// into any AppendError for diagnostics.
func (s *Store[S]) Insert(sequence string, rowInBatch int) (types.RowID, error) {
	if err := s.Validate(sequence, rowInBatch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := types.RowID(s.rowCount)

	for p := 0; p < len(sequence); p++ {
		sym, _ := s.parse(sequence[p])
		if s.referenceImplicit && sym == s.reference[p] {
			continue
		}
		s.position[p][uint8(sym)].AddInPlace(row)
	}
	s.rowCount++
	return row, nil
}

// InsertNull appends a null row: it is recorded in nullRows and
// contributes to no per-symbol bitmap at any position.
func (s *Store[S]) InsertNull() types.RowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := types.RowID(s.rowCount)
	s.rowCount++
	s.nullRows.Add(row)
	return row
}

// NullBitmap returns the rows with no sequence value.
func (s *Store[S]) NullBitmap() *bitmap.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nullRows
}

// RowCount returns the number of rows inserted so far, including nulls.
func (s *Store[S]) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCount
}

// Bitmap returns the rows whose value at position p is exactly symbol.
// When referenceImplicit is set and symbol is the reference symbol at
// p, the result is reconstructed as "every non-null row not explicitly
// recorded under a different symbol at p".
func (s *Store[S]) Bitmap(p int, symbol S) *bitmap.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.referenceImplicit || symbol != s.reference[p] {
		return s.position[p][uint8(symbol)].View()
	}
	return s.implicitReferenceBitmapLocked(p)
}

func (s *Store[S]) implicitReferenceBitmapLocked(p int) *bitmap.Bitmap {
	explicit := make([]*bitmap.Bitmap, 0, s.symbolCount)
	for sym := 0; sym < s.symbolCount; sym++ {
		if S(sym) == s.reference[p] {
			continue
		}
		explicit = append(explicit, s.position[p][sym].View())
	}
	recorded := bitmap.FastUnion(explicit)
	universe := bitmap.Full(uint32(s.rowCount))
	nonNull := bitmap.Difference(universe, s.nullRows)
	return bitmap.Difference(nonNull, recorded)
}

// Export reconstructs every row's full aligned symbol sequence from the
// position-bitmap index, for persistence. A nil entry marks a null row.
// It walks the index position-major rather than row-major: for each
// position it visits only the (few, for an implicit reference) symbols
// that were actually recorded there, instead of probing every row.
func (s *Store[S]) Export() []*[]S {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*[]S, s.rowCount)
	for row := range out {
		if s.nullRows.Contains(types.RowID(row)) {
			continue
		}
		seq := append([]S(nil), s.reference...)
		out[row] = &seq
	}
	for p := 0; p < len(s.reference); p++ {
		for sym := 0; sym < s.symbolCount; sym++ {
			if s.referenceImplicit && S(sym) == s.reference[p] {
				continue
			}
			s.position[p][sym].View().Iterate(func(row types.RowID) bool {
				if seq := out[row]; seq != nil {
					(*seq)[p] = S(sym)
				}
				return true
			})
		}
	}
	return out
}

// AmbiguousBitmap is the union of Bitmap(p, s') for every concrete
// symbol s' in symbol's ambiguity expansion.
func (s *Store[S]) AmbiguousBitmap(p int, symbol S) *bitmap.Bitmap {
	expansion := symbol.AmbiguityExpansion()
	bitmaps := make([]*bitmap.Bitmap, len(expansion))
	for i, sym := range expansion {
		bitmaps[i] = s.Bitmap(p, sym)
	}
	return bitmap.FastUnion(bitmaps)
}
