package vectors

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMinus rewrites the Unicode minus sign to the ASCII hyphen that
// strconv understands. NFKC folds the fullwidth forms but leaves U+2212
// alone.
var foldMinus = runes.Map(func(r rune) rune {
	if r == '−' {
		return '-'
	}
	return r
})

// tokenNormalizer cleans numeric tokens that arrive from hand-edited
// documents: compatibility forms are folded, minus signs unified, and
// space-class runes (regular and non-breaking) stripped.
var tokenNormalizer = transform.Chain(norm.NFKC, foldMinus, runes.Remove(runes.In(unicode.Zs)))

// ParseValue parses one numeric token into a float64. On top of the
// strconv grammar (decimal and hex-exponent literals, "NaN", "Inf",
// "Infinity", ignoring case) it tolerates Unicode minus signs and
// non-breaking spaces, which show up in values copied out of PDFs.
func ParseValue(token string) (float64, error) {
	cleaned, _, err := transform.String(tokenNormalizer, strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("normalize value %q: %w", token, err)
	}
	if cleaned == "" {
		return 0, fmt.Errorf("parse value %q: empty after normalization", token)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", token, err)
	}
	return v, nil
}
