// Package tokenizer turns free text into the canonical token sequence shared
// by the index builder and the query engine. Input is decomposed (NFKD),
// stripped of combining marks, lower-cased and split into maximal runs of
// letters and digits. Tokens are neither stemmed nor filtered for stop-words.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combining reports whether r carries a non-zero canonical combining class,
// which is what "diacritic" means for the normaliser.
func combining(r rune) bool {
	if r < utf8.RuneSelf {
		return false
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	return norm.NFKD.Properties(buf[:n]).CCC() != 0
}

// newNormalizer returns a fresh transformer chain. Chains keep internal state
// and are not safe for concurrent use, so each call builds its own.
func newNormalizer() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(combining)),
		cases.Lower(language.Und),
	)
}

// Normalize returns text decomposed, without combining marks and lower-cased.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	out, _, err := transform.String(newNormalizer(), text)
	if err != nil {
		// transform only fails on invalid UTF-8 state; fall back to the
		// plain lower-case form rather than dropping the text.
		return strings.ToLower(text)
	}
	return out
}

// Tokenize normalises text and returns its tokens in order of occurrence,
// duplicates retained.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !isWordRune(r)
	})
}

// isWordRune matches a word character excluding the underscore.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Frequencies counts tokens and returns the distinct tokens in first-seen
// order alongside their counts.
func Frequencies(tokens []string) ([]string, map[string]int) {
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := counts[t]; !seen {
			order = append(order, t)
		}
		counts[t]++
	}
	return order, counts
}
