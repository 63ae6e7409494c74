// Package intent classifies finalized remote utterances as questions.
//
// Classification is rule-based and fully deterministic: the same text
// always yields the same result. There is no model inference here — the
// decision gate downstream must be auditable, and a rule name in a log
// line explains an ALLOW better than a score ever could.
package intent

import (
	"strings"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

// Rule identifies which classification rule matched.
type Rule string

const (
	RuleNone                Rule = "NONE"
	RuleDirectQuestion      Rule = "DIRECT_QUESTION"
	RuleImperativeVerb      Rule = "IMPERATIVE_VERB"
	RuleContextualReference Rule = "CONTEXTUAL_REFERENCE"
)

// Result is the outcome of classifying one utterance.
type Result struct {
	// IsQuestion reports whether the utterance calls for an answer.
	IsQuestion bool

	// Confidence is the fixed confidence of the matched rule.
	Confidence float64

	// Rule names the matched rule, RuleNone when nothing matched.
	Rule Rule
}

// Interview prompts often arrive as commands rather than questions
// ("design a rate limiter", "walk me through your approach"), so bare
// imperatives count as questions.
var defaultImperativeVerbs = []string{
	"explain", "walk me through", "solve", "design", "implement",
	"write", "create", "build", "develop", "describe", "tell me",
	"show me", "demonstrate", "code", "program", "debug", "fix",
	"optimize",
}

// Phrases that refer to shared material (screen share, a problem
// statement) imply a prompt even without a verb or question mark.
var defaultContextualPhrases = []string{
	"on the screen", "based on this", "look at this", "see here",
	"in this code", "this problem", "given this", "for this",
	"with this",
}

// Classifier applies the question rules in fixed priority order:
// direct question, imperative verb, contextual reference. The first
// match wins.
type Classifier struct {
	verbs   []string
	phrases []string
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithImperativeVerbs replaces the imperative verb vocabulary.
func WithImperativeVerbs(verbs []string) Option {
	return func(c *Classifier) { c.verbs = lowered(verbs) }
}

// WithContextualPhrases replaces the contextual phrase vocabulary.
func WithContextualPhrases(phrases []string) Option {
	return func(c *Classifier) { c.phrases = lowered(phrases) }
}

// NewClassifier creates a classifier with the default vocabularies.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		verbs:   defaultImperativeVerbs,
		phrases: defaultContextualPhrases,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify applies the rules to a remote utterance. Accepting only
// [pipeline.RemoteUtterance] keeps LOCAL and NOISE text out of the
// question path at the type level.
func (c *Classifier) Classify(u pipeline.RemoteUtterance) Result {
	text := strings.ToLower(strings.TrimSpace(u.Text()))
	if text == "" {
		return Result{Rule: RuleNone}
	}

	if strings.HasSuffix(text, "?") {
		return Result{IsQuestion: true, Confidence: 0.95, Rule: RuleDirectQuestion}
	}

	for _, verb := range c.verbs {
		if strings.HasPrefix(text, verb) || strings.Contains(text, " "+verb+" ") {
			return Result{IsQuestion: true, Confidence: 0.90, Rule: RuleImperativeVerb}
		}
	}

	for _, phrase := range c.phrases {
		if strings.Contains(text, phrase) {
			return Result{IsQuestion: true, Confidence: 0.85, Rule: RuleContextualReference}
		}
	}

	return Result{Rule: RuleNone}
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
