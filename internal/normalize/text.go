package normalize

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics, unifies apostrophes and collapses whitespace,
// so "Già pagato  IERI" and "gia pagato ieri" compare equal.
func Fold(s string) string {
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("’", "'", "‘", "'", "`", "'").Replace(folded)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Text is a folded string prepared for repeated keyword lookups.
type Text struct {
	folded string
	tokens []string
}

// NewText folds and tokenizes s.
func NewText(s string) Text {
	folded := Fold(s)
	return Text{folded: folded, tokens: tokenize(folded)}
}

// String returns the folded form.
func (t Text) String() string {
	return t.folded
}

// tokenize splits on anything that is not a letter, digit or inner apostrophe.
// "today's" stays one token so it does not match "today".
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Matcher finds keywords in Text using the policy's matching mode.
type Matcher struct {
	mode KeywordMatch
}

// NewMatcher returns a matcher for the given mode.
func NewMatcher(mode KeywordMatch) Matcher {
	return Matcher{mode: mode}
}

// Contains reports whether the phrase occurs in text.
func (m Matcher) Contains(text Text, phrase string) bool {
	return m.Count(text, phrase) > 0
}

// Count returns how many non-overlapping times the phrase occurs in text.
func (m Matcher) Count(text Text, phrase string) int {
	return m.CountEach(text, []string{phrase})[0]
}

// CountEach counts every phrase in text without letting two matches share a
// word (or, in substring mode, a character). Longer phrases claim their span
// first, so "ho pagato con" counts once for "ho pagato" and not again for
// "pagato con". The result is indexed like phrases.
func (m Matcher) CountEach(text Text, phrases []string) []int {
	counts := make([]int, len(phrases))

	type pattern struct {
		index int
		units []string
	}
	patterns := make([]pattern, 0, len(phrases))
	for i, p := range phrases {
		if units := m.units(Fold(p)); len(units) > 0 {
			patterns = append(patterns, pattern{index: i, units: units})
		}
	}
	slices.SortStableFunc(patterns, func(a, b pattern) int {
		return cmp.Compare(len(b.units), len(a.units))
	})

	haystack := m.units(text.folded)
	claimed := make([]bool, len(haystack))
	for _, p := range patterns {
		width := len(p.units)
		for start := 0; start+width <= len(haystack); start++ {
			if !slices.Equal(haystack[start:start+width], p.units) || slices.Contains(claimed[start:start+width], true) {
				continue
			}
			for k := start; k < start+width; k++ {
				claimed[k] = true
			}
			counts[p.index]++
			start += width - 1
		}
	}
	return counts
}

// units splits folded text into the pieces matches are made of: tokens in
// word mode, single characters in substring mode.
func (m Matcher) units(folded string) []string {
	if m.mode != KeywordMatchSubstring {
		return tokenize(folded)
	}
	if folded == "" {
		return nil
	}
	return strings.Split(folded, "")
}
