package gcode

import "sort"

// Whitelists of G and M codes the analyzer recognizes as legitimate.
// Anything outside these sets is collected for the unknown-g/unknown-m
// diagnostics; it never halts the pass.
var (
	knownGCodes = map[int]struct{}{
		0: {}, 1: {}, 2: {}, 3: {},
		17: {}, 18: {}, 19: {},
		20: {}, 21: {}, 28: {},
		40: {}, 41: {}, 42: {}, 43: {}, 49: {},
		54: {}, 55: {}, 56: {}, 57: {}, 58: {}, 59: {},
		80: {}, 90: {}, 91: {}, 92: {}, 94: {}, 95: {},
	}
	knownMCodes = map[int]struct{}{
		0: {}, 1: {}, 2: {}, 3: {}, 4: {}, 5: {},
		6: {}, 7: {}, 8: {}, 9: {}, 30: {},
	}
)

// knownCode reports whether a G or M word value is whitelisted. Fractional
// code numbers (e.g. G38.2) are never whitelisted.
func knownCode(letter byte, value float64) bool {
	i := int(value)
	if float64(i) != value {
		return false
	}
	switch letter {
	case 'G':
		_, ok := knownGCodes[i]
		return ok
	case 'M':
		_, ok := knownMCodes[i]
		return ok
	}
	return true
}

// codeSet deduplicates flagged code values per address letter.
type codeSet struct {
	letter byte
	values map[float64]struct{}
}

func newCodeSet(letter byte) *codeSet {
	return &codeSet{letter: letter, values: map[float64]struct{}{}}
}

func (s *codeSet) add(v float64) {
	s.values[v] = struct{}{}
}

// sorted returns the flagged codes in canonical form ("G83"), ascending by
// numeric value.
func (s *codeSet) sorted() []string {
	vals := make([]float64, 0, len(s.values))
	for v := range s.values {
		vals = append(vals, v)
	}
	sort.Float64s(vals)

	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, Word{Letter: s.letter, Value: v}.String())
	}
	return out
}
