// Package phonetic matches misrecognized words against a known technical
// vocabulary using Double Metaphone codes with Jaro-Winkler ranking.
//
// Speech recognizers reliably mangle domain terms ("go routine",
// "cooper netties"), so candidates are first filtered by phonetic code
// overlap and then ranked by string similarity. When nothing overlaps
// phonetically, a stricter pure-similarity fallback still catches close
// spellings.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Matcher matches spoken words against a vocabulary of known terms. It is
// read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically-overlapping term to be accepted. Default: 0.70.
func WithPhoneticThreshold(v float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = v }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the
// no-phonetic-overlap fallback. Default: 0.85.
func WithFuzzyThreshold(v float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = v }
}

// New returns a Matcher with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary term most similar to word, which may be a
// single word or a space-separated n-gram. When matched is false the
// input is returned unchanged with confidence 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	input := strings.ToLower(strings.TrimSpace(word))
	if input == "" || len(terms) == 0 {
		return word, 0, false
	}
	inputTokens := strings.Fields(input)
	inputCodes := phoneticCodes(inputTokens)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)

	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		tokens := strings.Fields(t)

		score := similarity(input, inputTokens, t, tokens)
		overlap := codesOverlap(inputCodes, phoneticCodes(tokens))

		switch {
		case overlap && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestTerm, bestScore, bestPhonetic = term, score, true
			}
		case !overlap && !bestPhonetic && score >= m.fuzzyThreshold:
			if score > bestScore {
				bestTerm, bestScore = term, score
			}
		}
	}

	if bestTerm == "" {
		return word, 0, false
	}
	return bestTerm, bestScore, true
}

// phoneticCodes returns the union of Double Metaphone codes over tokens.
func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, 2*len(tokens))
	for _, tok := range tokens {
		primary, secondary := matchr.DoubleMetaphone(tok)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across full strings,
// space-stripped strings, and all token pairs. The variants cover the
// common recognizer failure of splitting one term into several words.
func similarity(input string, inputTokens []string, term string, termTokens []string) float64 {
	score := matchr.JaroWinkler(input, term, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(
			strings.Join(inputTokens, ""),
			strings.Join(termTokens, ""),
			false,
		)
		if joined > score {
			score = joined
		}
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
