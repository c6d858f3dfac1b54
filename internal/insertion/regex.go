package insertion

import (
	"fmt"
	"regexp/syntax"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
)

// parsePattern parses a pattern against the documented subset: literal
// runs, `.`, `.*`, `.+`, single-level character classes, and
// concatenation. Alternation, groups, anchors, and backreferences are
// rejected so the same parsed tree can drive both literal-run
// extraction (for the trigram prefilter) and final verification
// (fullMatch) without the two disagreeing on what they accept.
func parsePattern(pattern string) (*syntax.Regexp, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, siloerrors.NewBadRequestError("insertionRegex", fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}
	elems := flatten(re)
	for _, e := range elems {
		switch e.Op {
		case syntax.OpLiteral, syntax.OpAnyChar, syntax.OpAnyCharNotNL, syntax.OpCharClass:
			continue
		case syntax.OpStar, syntax.OpPlus:
			if len(e.Sub) != 1 || !isSingleCharMatcher(e.Sub[0]) {
				return nil, siloerrors.NewBadRequestError("insertionRegex", fmt.Sprintf("pattern %q: repetition must apply to a single character or class", pattern))
			}
		case syntax.OpEmptyMatch:
			continue
		default:
			return nil, siloerrors.NewBadRequestError("insertionRegex", fmt.Sprintf("pattern %q: only literals, '.', '.*', '.+', character classes, and concatenation are allowed", pattern))
		}
	}
	return re, nil
}

func isSingleCharMatcher(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL, syntax.OpCharClass:
		return true
	case syntax.OpLiteral:
		return len(re.Rune) == 1
	default:
		return false
	}
}

// flatten returns the top-level concatenated elements of re, or a
// single-element slice if re is not a concatenation.
func flatten(re *syntax.Regexp) []*syntax.Regexp {
	if re.Op == syntax.OpConcat {
		return re.Sub
	}
	return []*syntax.Regexp{re}
}

// literalRuns returns every maximal run of literal runes in pattern
// whose length is at least minLen, extracted from its parsed elements.
func literalRuns(elems []*syntax.Regexp, minLen int) []string {
	var runs []string
	var current []rune
	flush := func() {
		if len(current) >= minLen {
			runs = append(runs, string(current))
		}
		current = nil
	}
	for _, e := range elems {
		if e.Op == syntax.OpLiteral {
			current = append(current, e.Rune...)
			continue
		}
		flush()
	}
	flush()
	return runs
}

// fullMatch reports whether s matches the full pattern described by
// elems (the flattened concatenation). It backtracks over `.*`/`.+`
// the same way a reference-implementation-style bounded regex engine
// would for this small, non-nested subset.
func fullMatch(elems []*syntax.Regexp, s string) bool {
	return matchFrom(elems, 0, s, 0)
}

func matchFrom(elems []*syntax.Regexp, ei int, s string, si int) bool {
	if ei == len(elems) {
		return si == len(s)
	}
	e := elems[ei]
	switch e.Op {
	case syntax.OpEmptyMatch:
		return matchFrom(elems, ei+1, s, si)
	case syntax.OpLiteral:
		lit := []byte(string(e.Rune))
		if si+len(lit) > len(s) || string(s[si:si+len(lit)]) != string(lit) {
			return false
		}
		return matchFrom(elems, ei+1, s, si+len(lit))
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		if si >= len(s) {
			return false
		}
		return matchFrom(elems, ei+1, s, si+1)
	case syntax.OpCharClass:
		if si >= len(s) || !runeInClass(e.Rune, rune(s[si])) {
			return false
		}
		return matchFrom(elems, ei+1, s, si+1)
	case syntax.OpStar:
		return matchRepeat(elems, ei, s, si, 0)
	case syntax.OpPlus:
		return matchRepeat(elems, ei, s, si, 1)
	default:
		return false
	}
}

// matchRepeat greedily consumes characters matched by elems[ei].Sub[0]
// (at least min of them), backtracking down to min on failure of the
// remainder of the pattern.
func matchRepeat(elems []*syntax.Regexp, ei int, s string, si int, min int) bool {
	child := elems[ei].Sub[0]
	max := si
	for max < len(s) && matchesSingle(child, rune(s[max])) {
		max++
	}
	for count := max - si; count >= min; count-- {
		if matchFrom(elems, ei+1, s, si+count) {
			return true
		}
	}
	return false
}

func matchesSingle(re *syntax.Regexp, r rune) bool {
	switch re.Op {
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return true
	case syntax.OpCharClass:
		return runeInClass(re.Rune, r)
	case syntax.OpLiteral:
		return len(re.Rune) == 1 && re.Rune[0] == r
	default:
		return false
	}
}

// runeInClass reports whether r falls within any [lo,hi] pair of a
// regexp/syntax character class's Rune ranges.
func runeInClass(ranges []rune, r rune) bool {
	for i := 0; i+1 < len(ranges); i += 2 {
		if r >= ranges[i] && r <= ranges[i+1] {
			return true
		}
	}
	return false
}
