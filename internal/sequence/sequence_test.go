package sequence

import (
	"testing"

	"github.com/standardbeagle/silo/internal/alphabet"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
)

func parseNuc(b byte) (alphabet.Nucleotide, bool) { return alphabet.ParseNucleotide(b) }

func refNuc(s string) []alphabet.Nucleotide {
	ref := make([]alphabet.Nucleotide, len(s))
	for i := 0; i < len(s); i++ {
		n, _ := alphabet.ParseNucleotide(s[i])
		ref[i] = n
	}
	return ref
}

const nucleotideAlphabetSize = 17 // matches alphabet's internal nucCount

func TestInsertRejectsWrongLength(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	_, err := store.Insert("ACG", 0)
	if err == nil {
		t.Fatalf("expected an error for a short sequence")
	}
	appendErr, ok := err.(*siloerrors.AppendError)
	if !ok || appendErr.Kind != siloerrors.AppendBadLength {
		t.Fatalf("err = %v, want AppendBadLength", err)
	}
}

func TestInsertRejectsIllegalSymbol(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	_, err := store.Insert("ACGZ", 3)
	appendErr, ok := err.(*siloerrors.AppendError)
	if !ok || appendErr.Kind != siloerrors.AppendIllegalSymbol {
		t.Fatalf("err = %v, want AppendIllegalSymbol", err)
	}
	if appendErr.Position != 3 || appendErr.Symbol != 'Z' {
		t.Errorf("got position=%d symbol=%q, want position=3 symbol='Z'", appendErr.Position, appendErr.Symbol)
	}
}

func TestValidateRejectsWithoutIndexing(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	if err := store.Validate("ACGZ", 0); err == nil {
		t.Fatalf("expected an error for an illegal symbol")
	}
	if store.RowCount() != 0 {
		t.Fatalf("Validate must not index a row or advance rowCount, got rowCount=%d", store.RowCount())
	}
	if err := store.Validate("ACGT", 0); err != nil {
		t.Fatalf("Validate(%q) = %v, want nil", "ACGT", err)
	}
	if store.RowCount() != 0 {
		t.Fatalf("a successful Validate must still not index anything, got rowCount=%d", store.RowCount())
	}
}

// Sequence equals with dot: rows ACGT, AAGT, ACCT against ref ACGT;
// 0-indexed position 1 equal to ref symbol C selects rows 0 and 2.
func TestSequenceEqualsWithDot(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	must := func(s string) {
		if _, err := store.Insert(s, 0); err != nil {
			t.Fatalf("Insert(%q) failed: %v", s, err)
		}
	}
	must("ACGT")
	must("AAGT")
	must("ACCT")

	refSym := store.ReferenceSymbol(1)
	if refSym != alphabet.NucC {
		t.Fatalf("ReferenceSymbol(1) = %v, want C", refSym)
	}

	bm := store.Bitmap(1, refSym)
	if bm.Cardinality() != 2 || !bm.Contains(0) || !bm.Contains(2) {
		t.Errorf("Bitmap(1, ref) = %v, want {0,2}", bm.ToArray())
	}
}

// HasMutation upper vs lower: inserting an ambiguous N at a mutated
// position changes membership under AmbiguousBitmap vs the exact bitmap.
func TestHasMutationUpperVsLower(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	must := func(s string) {
		if _, err := store.Insert(s, 0); err != nil {
			t.Fatalf("Insert(%q) failed: %v", s, err)
		}
	}
	must("ACGT") // row 0: matches ref
	must("AAGT") // row 1: mutated (A instead of C at pos 1)
	must("ACCT") // row 2: matches ref
	must("ANGT") // row 3: ambiguous N at pos 1

	mutatedExact := store.Bitmap(1, alphabet.NucA)
	if mutatedExact.Cardinality() != 1 || !mutatedExact.Contains(1) {
		t.Errorf("exact mutated bitmap = %v, want {1}", mutatedExact.ToArray())
	}

	// AmbiguousBitmap(p, N) is the union of the literal A/C/G/T bitmaps
	// (N's own ambiguity expansion) — it matches rows definitely storing
	// one of those concrete bases, not rows that literally stored "N".
	ambiguousForN := store.AmbiguousBitmap(1, alphabet.NucN)
	if ambiguousForN.Contains(3) {
		t.Errorf("AmbiguousBitmap(N) must not include a row whose literal symbol is N itself")
	}
	if !ambiguousForN.Contains(1) {
		t.Errorf("AmbiguousBitmap(N) should include row 1, which literally stores A")
	}

	// The literal N bitmap only ever contains the row that stored N.
	literalN := store.Bitmap(1, alphabet.NucN)
	if literalN.Cardinality() != 1 || !literalN.Contains(3) {
		t.Errorf("literal N bitmap = %v, want {3}", literalN.ToArray())
	}
}

func TestReferenceImplicitEncodingOmitsMatches(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, true)
	store.Insert("ACGT", 0) // row 0: all positions match reference
	store.Insert("AAGT", 0) // row 1: pos 1 mutated

	// Row 0 was never added to any bitmap in storage at position 1 (the
	// reference symbol there is C): the raw per-symbol entry stays empty.
	rawRefBitmap := store.position[1][uint8(alphabet.NucC)].View()
	if !rawRefBitmap.IsEmpty() {
		t.Errorf("reference-implicit storage should leave the reference symbol's raw bitmap empty, got %v", rawRefBitmap.ToArray())
	}

	// But querying through Bitmap reconstructs the implicit membership.
	reconstructed := store.Bitmap(1, store.ReferenceSymbol(1))
	if !reconstructed.Contains(0) || reconstructed.Contains(1) {
		t.Errorf("reconstructed reference bitmap = %v, want {0}", reconstructed.ToArray())
	}
}

func TestInsertNullExcludedFromEverySymbolBitmap(t *testing.T) {
	store := NewStore(refNuc("ACGT"), parseNuc, nucleotideAlphabetSize, false)
	store.Insert("ACGT", 0)
	nullRow := store.InsertNull()

	if !store.NullBitmap().Contains(nullRow) {
		t.Fatalf("null row missing from NullBitmap")
	}
	for p := 0; p < store.Length(); p++ {
		for sym := alphabet.Nucleotide(0); sym < nucleotideAlphabetSize; sym++ {
			if store.Bitmap(p, sym).Contains(nullRow) {
				t.Errorf("null row must not appear in any per-symbol bitmap (pos %d, sym %v)", p, sym)
			}
		}
	}
}
