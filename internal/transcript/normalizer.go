package transcript

import (
	"strings"
)

// TermMatcher aligns a word or n-gram with a known vocabulary term.
// Implemented by [phonetic.Matcher].
type TermMatcher interface {
	// Match returns the best-matching term, its similarity confidence,
	// and whether anything matched. When matched is false, corrected
	// equals word unchanged.
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}

// Correction records one applied vocabulary repair.
type Correction struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
}

// Normalizer repairs recognition errors on vocabulary terms in finalized
// utterance text. The vocabulary typically comes from the preference
// profile's skills list, so the terms the candidate will actually say are
// the ones that get fixed.
//
// Normalization runs after finalization and before display and storage;
// the intent classifier sees the original text, since its rules do not
// depend on vocabulary spelling.
type Normalizer struct {
	matcher TermMatcher
	terms   []string
	maxN    int
}

// NewNormalizer creates a normalizer over the given vocabulary. A nil
// matcher or empty vocabulary yields a pass-through normalizer.
func NewNormalizer(matcher TermMatcher, terms []string) *Normalizer {
	maxN := 1
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > maxN {
			maxN = n
		}
	}
	return &Normalizer{matcher: matcher, terms: terms, maxN: maxN}
}

// Normalize returns the corrected text and the corrections applied.
// Longer n-gram windows are tried first so multi-word terms win over
// partial single-word matches; the cursor advances by the tokens consumed.
func (n *Normalizer) Normalize(text string) (string, []Correction) {
	if n.matcher == nil || len(n.terms) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		width := n.maxN
		if i+width > len(tokens) {
			width = len(tokens) - i
		}

		matched := false
		for w := width; w >= 1; w-- {
			window := strings.Join(tokens[i:i+w], " ")
			term, conf, ok := n.matcher.Match(window, n.terms)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(term)...)
			if !strings.EqualFold(window, term) {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  term,
					Confidence: conf,
				})
			}
			i += w
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}
