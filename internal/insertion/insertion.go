// Package insertion implements the per-(sequence, position) insertion
// index: an exact map from inserted text to the rows that carry it,
// accelerated for regex search by an n-gram posting list over the
// insertion texts themselves.
package insertion

import (
	"regexp/syntax"
	"sync"

	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/types"
)

const trigramSize = 3

// Key identifies one sequence column and one reference position.
type Key struct {
	SequenceName string
	Position     int
}

// Index holds one positional index per (sequence, position) pair that
// has ever seen an insertion.
type Index struct {
	mu        sync.RWMutex
	positions map[Key]*positionIndex
}

// New returns an empty Index.
func New() *Index {
	return &Index{positions: make(map[Key]*positionIndex)}
}

type positionIndex struct {
	texts    map[string]*bitmap.Bitmap      // exact insertion text -> rows
	trigrams map[string]map[string]struct{} // trigram -> set of texts containing it
}

func newPositionIndex() *positionIndex {
	return &positionIndex{
		texts:    make(map[string]*bitmap.Bitmap),
		trigrams: make(map[string]map[string]struct{}),
	}
}

// Insert records that row carries insertion text at (sequenceName, position).
func (idx *Index) Insert(sequenceName string, position int, text string, row types.RowID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := Key{SequenceName: sequenceName, Position: position}
	pi, ok := idx.positions[key]
	if !ok {
		pi = newPositionIndex()
		idx.positions[key] = pi
	}

	bm, ok := pi.texts[text]
	if !ok {
		bm = bitmap.New()
		pi.texts[text] = bm
		for _, tri := range trigramsOf(text) {
			set, ok := pi.trigrams[tri]
			if !ok {
				set = make(map[string]struct{})
				pi.trigrams[tri] = set
			}
			set[text] = struct{}{}
		}
	}
	bm.Add(row)
}

// ByRow reconstructs, for every row that has at least one insertion
// recorded against sequenceName, the position->text map Insert was
// originally called with. Used to persist and reload an ingest batch
// without re-parsing the insertions column.
func (idx *Index) ByRow(sequenceName string) map[types.RowID]map[int]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[types.RowID]map[int]string)
	for key, pi := range idx.positions {
		if key.SequenceName != sequenceName {
			continue
		}
		for text, bm := range pi.texts {
			bm.Iterate(func(row types.RowID) bool {
				rows, ok := out[row]
				if !ok {
					rows = make(map[int]string)
					out[row] = rows
				}
				rows[key.Position] = text
				return true
			})
		}
	}
	return out
}

// ExactFilter returns the bitmap of rows carrying exactly text at
// (sequenceName, position).
func (idx *Index) ExactFilter(sequenceName string, position int, text string) (*bitmap.Bitmap, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pi, ok := idx.positions[Key{SequenceName: sequenceName, Position: position}]
	if !ok {
		return nil, false
	}
	bm, ok := pi.texts[text]
	return bm, ok
}

// Search evaluates a bounded regex against every insertion text seen at
// (sequenceName, position) and returns the union of rows whose text
// fully matches.
func (idx *Index) Search(sequenceName string, position int, pattern string) (*bitmap.Bitmap, error) {
	re, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	elems := flatten(re)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pi, ok := idx.positions[Key{SequenceName: sequenceName, Position: position}]
	if !ok {
		return bitmap.New(), nil
	}

	candidates := pi.candidateTexts(elems)
	if len(candidates) == 0 {
		return bitmap.New(), nil
	}

	matched := make([]*bitmap.Bitmap, 0, len(candidates))
	for _, text := range candidates {
		if fullMatch(elems, text) {
			matched = append(matched, pi.texts[text])
		}
	}
	return bitmap.FastUnion(matched), nil
}

// candidateTexts narrows the set of insertion texts worth verifying
// against the full pattern. When the pattern carries no literal run of
// at least trigramSize runes (e.g. a bare ".*"), the posting list can't
// help and every known text is a candidate.
func (pi *positionIndex) candidateTexts(elems []*syntax.Regexp) []string {
	runs := literalRuns(elems, trigramSize)
	if len(runs) == 0 {
		all := make([]string, 0, len(pi.texts))
		for text := range pi.texts {
			all = append(all, text)
		}
		return all
	}

	var sets []map[string]struct{}
	for _, run := range runs {
		for _, tri := range trigramsOf(run) {
			set, ok := pi.trigrams[tri]
			if !ok {
				// One of this run's trigrams has never been indexed:
				// no text can satisfy the run, so no text can match.
				return nil
			}
			sets = append(sets, set)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}

	var candidates []string
	for text := range smallest {
		inAll := true
		for _, s := range sets {
			if _, ok := s[text]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			candidates = append(candidates, text)
		}
	}
	return candidates
}

// trigramsOf returns every overlapping length-3 substring of s. Texts
// shorter than trigramSize contribute no trigrams and are only ever
// reached through the full-scan candidate path.
func trigramsOf(s string) []string {
	if len(s) < trigramSize {
		return nil
	}
	out := make([]string, 0, len(s)-trigramSize+1)
	for i := 0; i+trigramSize <= len(s); i++ {
		out = append(out, s[i:i+trigramSize])
	}
	return out
}
