package intent

import (
	"testing"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

func remoteUtterance(t *testing.T, text string) pipeline.RemoteUtterance {
	t.Helper()
	ev := pipeline.TranscriptEvent{Speaker: pipeline.SpeakerRemote, Text: text}
	u, ok := ev.Remote()
	if !ok {
		t.Fatalf("could not build remote utterance for %q", text)
	}
	return u
}

func TestClassify(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name string
		text string
		want Result
	}{
		{
			name: "trailing question mark",
			text: "Can you hear me?",
			want: Result{IsQuestion: true, Confidence: 0.95, Rule: RuleDirectQuestion},
		},
		{
			name: "question mark with trailing whitespace",
			text: "  What does this function return?  ",
			want: Result{IsQuestion: true, Confidence: 0.95, Rule: RuleDirectQuestion},
		},
		{
			name: "imperative at start",
			text: "Design a rate limiter for our API.",
			want: Result{IsQuestion: true, Confidence: 0.90, Rule: RuleImperativeVerb},
		},
		{
			name: "imperative mid-sentence",
			text: "Please walk me through your solution",
			want: Result{IsQuestion: true, Confidence: 0.90, Rule: RuleImperativeVerb},
		},
		{
			name: "contextual reference",
			text: "Take a minute with what's on the screen",
			want: Result{IsQuestion: true, Confidence: 0.85, Rule: RuleContextualReference},
		},
		{
			name: "question mark outranks imperative verb",
			text: "Explain this one more time, would you?",
			want: Result{IsQuestion: true, Confidence: 0.95, Rule: RuleDirectQuestion},
		},
		{
			name: "imperative outranks contextual phrase",
			text: "Describe what happens in this code",
			want: Result{IsQuestion: true, Confidence: 0.90, Rule: RuleImperativeVerb},
		},
		{
			name: "statement",
			text: "We usually deploy on Fridays.",
			want: Result{Rule: RuleNone},
		},
		{
			name: "verb embedded in a longer word",
			text: "The codebase is large.",
			want: Result{Rule: RuleNone},
		},
		{
			name: "empty text",
			text: "   ",
			want: Result{Rule: RuleNone},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(remoteUtterance(t, tc.text))
			if got != tc.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier()
	u := remoteUtterance(t, "Tell me about a time you disagreed with a teammate")

	first := c.Classify(u)
	for i := 0; i < 100; i++ {
		if got := c.Classify(u); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
	if first.Rule != RuleImperativeVerb {
		t.Errorf("rule = %v, want IMPERATIVE_VERB", first.Rule)
	}
}

func TestCustomVocabularies(t *testing.T) {
	c := NewClassifier(
		WithImperativeVerbs([]string{"Sketch"}),
		WithContextualPhrases([]string{"on the whiteboard"}),
	)

	if got := c.Classify(remoteUtterance(t, "sketch the data flow")); got.Rule != RuleImperativeVerb {
		t.Errorf("custom verb: got %+v", got)
	}
	if got := c.Classify(remoteUtterance(t, "start with what you see on the whiteboard")); got.Rule != RuleContextualReference {
		t.Errorf("custom phrase: got %+v", got)
	}
	if got := c.Classify(remoteUtterance(t, "design a rate limiter")); got.Rule != RuleNone {
		t.Errorf("default verb should be replaced: got %+v", got)
	}
}
