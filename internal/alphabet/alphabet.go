// Package alphabet defines the symbol enumerations the sequence store
// and its filter predicates are built over: nucleotide and amino-acid
// codes, each with a table mapping ambiguity codes to the concrete
// symbols they may represent.
//
// For both enums, the symbol and ambiguity-expansion tables are small
// fixed-size arrays indexed by the enum's integer value, so encoding and
// ambiguity-expansion lookups are O(1) with no allocation or hashing.
// Decoding a raw byte goes through a small map keyed by that byte.
package alphabet

import "fmt"

// Nucleotide is one symbol of the aligned nucleotide alphabet. "U" is
// folded into "T" on parse, since SILO treats RNA and DNA input
// uniformly. "." is a masked/no-call position (distinct from "-", a
// called deletion); its ambiguity expansion is the full unambiguous
// base set, the same as "N".
type Nucleotide uint8

const (
	NucA Nucleotide = iota
	NucC
	NucG
	NucT
	NucR // A or G
	NucY // C or T
	NucS // G or C
	NucW // A or T
	NucK // G or T
	NucM // A or C
	NucB // C, G, or T
	NucD // A, G, or T
	NucH // A, C, or T
	NucV // A, C, or G
	NucN // any
	NucGap
	NucMask
	nucCount
)

// NucleotideAlphabetSize is the number of distinct Nucleotide symbols,
// i.e. the width a position_bitmap row needs to index every symbol.
const NucleotideAlphabetSize = int(nucCount)

var nucleotideSymbols = [nucCount]byte{
	NucA: 'A', NucC: 'C', NucG: 'G', NucT: 'T',
	NucR: 'R', NucY: 'Y', NucS: 'S', NucW: 'W', NucK: 'K', NucM: 'M',
	NucB: 'B', NucD: 'D', NucH: 'H', NucV: 'V', NucN: 'N',
	NucGap: '-', NucMask: '.',
}

var nucleotideFromByte = map[byte]Nucleotide{
	'A': NucA, 'C': NucC, 'G': NucG, 'T': NucT, 'U': NucT,
	'R': NucR, 'Y': NucY, 'S': NucS, 'W': NucW, 'K': NucK, 'M': NucM,
	'B': NucB, 'D': NucD, 'H': NucH, 'V': NucV, 'N': NucN,
	'-': NucGap, '.': NucMask,
}

// nucleotideAmbiguity maps each code to the concrete (unambiguous)
// symbols it may represent. Unambiguous codes map to themselves.
var nucleotideAmbiguity = [nucCount][]Nucleotide{
	NucA: {NucA}, NucC: {NucC}, NucG: {NucG}, NucT: {NucT},
	NucR: {NucA, NucG},
	NucY: {NucC, NucT},
	NucS: {NucG, NucC},
	NucW: {NucA, NucT},
	NucK: {NucG, NucT},
	NucM: {NucA, NucC},
	NucB: {NucC, NucG, NucT},
	NucD: {NucA, NucG, NucT},
	NucH: {NucA, NucC, NucT},
	NucV: {NucA, NucC, NucG},
	NucN: {NucA, NucC, NucG, NucT},
	NucGap: {NucGap},
	NucMask: {NucA, NucC, NucG, NucT},
}

// ParseNucleotide decodes a single aligned-sequence character.
func ParseNucleotide(b byte) (Nucleotide, bool) {
	n, ok := nucleotideFromByte[b]
	return n, ok
}

func (n Nucleotide) String() string {
	if n >= nucCount {
		return fmt.Sprintf("Nucleotide(%d)", uint8(n))
	}
	return string(nucleotideSymbols[n])
}

// IsAmbiguous reports whether n can represent more than one concrete base.
func (n Nucleotide) IsAmbiguous() bool {
	return len(nucleotideAmbiguity[n]) > 1
}

// AmbiguityExpansion returns the concrete symbols n may represent, in a
// fixed order. The returned slice must not be mutated by callers.
func (n Nucleotide) AmbiguityExpansion() []Nucleotide {
	return nucleotideAmbiguity[n]
}

// AminoAcid is one symbol of the amino-acid alphabet: the standard 20
// residues plus the stop codon, gap, mask, and ambiguity codes.
type AminoAcid uint8

const (
	AAAla AminoAcid = iota // A
	AAArg                  // R
	AAAsn                  // N
	AAAsp                  // D
	AACys                  // C
	AAGln                  // Q
	AAGlu                  // E
	AAGly                  // G
	AAHis                  // H
	AAIle                  // I
	AALeu                  // L
	AALys                  // K
	AAMet                  // M
	AAPhe                  // F
	AAPro                  // P
	AASer                  // S
	AAThr                  // T
	AATrp                  // W
	AATyr                  // Y
	AAVal                  // V
	AAStop                 // *
	AAAsx                  // B: Asp or Asn
	AAGlx                  // Z: Glu or Gln
	AAXle                  // J: Leu or Ile
	AAAny                  // X: any residue
	AAGap                  // -
	AAMask                 // .
	aaCount
)

// AminoAcidAlphabetSize is the number of distinct AminoAcid symbols.
const AminoAcidAlphabetSize = int(aaCount)

var aminoAcidSymbols = [aaCount]byte{
	AAAla: 'A', AAArg: 'R', AAAsn: 'N', AAAsp: 'D', AACys: 'C',
	AAGln: 'Q', AAGlu: 'E', AAGly: 'G', AAHis: 'H', AAIle: 'I',
	AALeu: 'L', AALys: 'K', AAMet: 'M', AAPhe: 'F', AAPro: 'P',
	AASer: 'S', AAThr: 'T', AATrp: 'W', AATyr: 'Y', AAVal: 'V',
	AAStop: '*', AAAsx: 'B', AAGlx: 'Z', AAXle: 'J', AAAny: 'X',
	AAGap: '-', AAMask: '.',
}

var aminoAcidFromByte = func() map[byte]AminoAcid {
	m := make(map[byte]AminoAcid, aaCount)
	for code, b := range aminoAcidSymbols {
		m[b] = AminoAcid(code)
	}
	return m
}()

var unambiguousResidues = func() []AminoAcid {
	residues := make([]AminoAcid, 0, 20)
	for code := AminoAcid(0); code <= AAVal; code++ {
		residues = append(residues, code)
	}
	return residues
}()

var aminoAcidAmbiguity = func() [aaCount][]AminoAcid {
	var table [aaCount][]AminoAcid
	for code := AminoAcid(0); code <= AAStop; code++ {
		table[code] = []AminoAcid{code}
	}
	table[AAAsx] = []AminoAcid{AAAsp, AAAsn}
	table[AAGlx] = []AminoAcid{AAGlu, AAGln}
	table[AAXle] = []AminoAcid{AALeu, AAIle}
	table[AAAny] = unambiguousResidues
	table[AAGap] = []AminoAcid{AAGap}
	table[AAMask] = unambiguousResidues
	return table
}()

// ParseAminoAcid decodes a single aligned amino-acid sequence character.
func ParseAminoAcid(b byte) (AminoAcid, bool) {
	a, ok := aminoAcidFromByte[b]
	return a, ok
}

func (a AminoAcid) String() string {
	if a >= aaCount {
		return fmt.Sprintf("AminoAcid(%d)", uint8(a))
	}
	return string(aminoAcidSymbols[a])
}

// IsAmbiguous reports whether a can represent more than one residue.
func (a AminoAcid) IsAmbiguous() bool {
	return len(aminoAcidAmbiguity[a]) > 1
}

// AmbiguityExpansion returns the concrete residues a may represent. The
// returned slice must not be mutated by callers.
func (a AminoAcid) AmbiguityExpansion() []AminoAcid {
	return aminoAcidAmbiguity[a]
}
