// Package answer turns ALLOWed questions into structured answer plans and
// dispatches them to the answer-generation collaborator without ever
// blocking the frame path.
package answer

import "strings"

// knownLanguages are the implementation languages a question can call out
// explicitly, checked in order.
var knownLanguages = []string{"Python", "Java", "JavaScript", "C++", "Go"}

// PreferenceProfile parameterizes answer plans for one candidate.
type PreferenceProfile struct {
	// PreferredLanguage is used for coding answers when the question
	// does not name a language. Defaults to Python.
	PreferredLanguage string `yaml:"preferred_language"`

	// Skills lists the candidate's technologies. They seed the
	// transcript vocabulary and are echoed into the answer prompt.
	Skills []string `yaml:"skills"`

	// Resume is free-form background text injected into prompts.
	Resume string `yaml:"resume"`
}

// LanguageFor picks the implementation language for a question: a
// language named in the question wins, otherwise the profile preference,
// otherwise Python.
func (p PreferenceProfile) LanguageFor(question string) string {
	q := strings.ToLower(question)
	for _, lang := range knownLanguages {
		if containsWord(q, strings.ToLower(lang)) {
			return lang
		}
	}
	if p.PreferredLanguage != "" {
		return p.PreferredLanguage
	}
	return "Python"
}

// containsWord reports whether text contains w bounded by non-letters, so
// "go" does not match inside "algorithm".
func containsWord(text, w string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], w)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(w)
		leftOK := i == 0 || !isLetter(text[i-1])
		rightOK := end == len(text) || !isLetter(text[end])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
