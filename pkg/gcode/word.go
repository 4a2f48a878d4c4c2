package gcode

import (
	"strconv"
	"strings"
)

// Word is a single G-code address word: a one-letter code followed by a
// numeric literal, e.g. G1, X10.5, F1200.
type Word struct {
	Letter byte    // uppercase address letter: 'G', 'M', 'X', ...
	Value  float64 // numeric suffix
}

// Number renders the word's numeric value the way it appeared in canonical
// G-code, without a trailing ".0" for integral values.
func (w Word) Number() string {
	return strconv.FormatFloat(w.Value, 'f', -1, 64)
}

// String returns the canonical form of the word, e.g. "G21" or "X10.5".
func (w Word) String() string {
	return string(w.Letter) + w.Number()
}

// SanitizeLine reduces one raw program line to its address words.
//
// Everything from the first '(' to the end of the line is an inline comment
// and is discarded. A bare '%' program delimiter and blank lines yield no
// words. The remainder is uppercased and split on whitespace and semicolons;
// each token must be a letter followed by a numeric literal. A token whose
// numeric suffix fails to parse is dropped silently; sanitizing never
// fails on a malformed word.
func SanitizeLine(raw string) []Word {
	line := raw
	if i := strings.IndexByte(line, '('); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || line == "%" {
		return nil
	}

	line = strings.ToUpper(line)
	line = strings.ReplaceAll(line, ";", " ")

	var words []Word
	for _, tok := range strings.Fields(line) {
		c := tok[0]
		if c < 'A' || c > 'Z' {
			continue
		}
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil {
			continue
		}
		words = append(words, Word{Letter: c, Value: v})
	}
	return words
}
