package answer

import (
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

func remoteEvent(text string) pipeline.TranscriptEvent {
	return pipeline.TranscriptEvent{
		Speaker:    pipeline.SpeakerRemote,
		Text:       text,
		Confidence: 0.92,
	}
}

func TestTemplateSelection(t *testing.T) {
	cases := []struct {
		question string
		want     Template
	}{
		{"Can you implement a binary search?", TemplateStructured},
		{"Tell me about a time you missed a deadline", TemplateSTAR},
		{"Describe a situation with a difficult stakeholder", TemplateSTAR},
		{"How would you handle conflicting priorities", TemplateSTAR},
		{"Why should we hire you", TemplateSTAR},
		{"Design a URL shortener", TemplateStructured},
	}

	f := NewFormatter(PreferenceProfile{})
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			plan := f.Format(remoteEvent(tc.question), nil)
			if plan.Template != tc.want {
				t.Errorf("template = %v, want %v", plan.Template, tc.want)
			}
		})
	}
}

func TestLanguageSelection(t *testing.T) {
	profile := PreferenceProfile{PreferredLanguage: "Go"}

	t.Run("explicit language in question wins", func(t *testing.T) {
		if got := profile.LanguageFor("implement this in Java please"); got != "Java" {
			t.Errorf("language = %q, want Java", got)
		}
	})

	t.Run("profile preference otherwise", func(t *testing.T) {
		if got := profile.LanguageFor("implement a stack"); got != "Go" {
			t.Errorf("language = %q, want Go", got)
		}
	})

	t.Run("default is Python", func(t *testing.T) {
		if got := (PreferenceProfile{}).LanguageFor("implement a stack"); got != "Python" {
			t.Errorf("language = %q, want Python", got)
		}
	})

	t.Run("substring of a longer word does not count", func(t *testing.T) {
		if got := (PreferenceProfile{}).LanguageFor("optimize the algorithm"); got != "Python" {
			t.Errorf("language = %q, want Python", got)
		}
	})
}

func TestFormatRendersPrompts(t *testing.T) {
	f := NewFormatter(PreferenceProfile{
		PreferredLanguage: "Go",
		Skills:            []string{"Go", "PostgreSQL"},
		Resume:            "Five years of backend work.",
	})

	plan := f.Format(remoteEvent("Can you implement an LRU cache?"), nil)

	if plan.ID == "" {
		t.Error("plan ID not set")
	}
	if plan.Speaker != "REMOTE" || plan.Confidence != 0.92 {
		t.Errorf("speaker metadata = %q/%v", plan.Speaker, plan.Confidence)
	}
	if !strings.Contains(plan.SystemPrompt, "Go code") {
		t.Errorf("system prompt missing language step:\n%s", plan.SystemPrompt)
	}
	if !strings.Contains(plan.SystemPrompt, "PostgreSQL") {
		t.Error("system prompt missing skills")
	}
	if !strings.Contains(plan.SystemPrompt, "Five years of backend work.") {
		t.Error("system prompt missing resume")
	}
	if !strings.Contains(plan.UserPrompt, "Can you implement an LRU cache?") {
		t.Errorf("user prompt missing question:\n%s", plan.UserPrompt)
	}

	star := f.Format(remoteEvent("Tell me about a time you led a migration"), nil)
	if !strings.Contains(star.SystemPrompt, "Situation") || !strings.Contains(star.SystemPrompt, "Result") {
		t.Errorf("STAR prompt malformed:\n%s", star.SystemPrompt)
	}
}

func TestFormatRendersRecentDiscussion(t *testing.T) {
	f := NewFormatter(PreferenceProfile{})

	recent := []pipeline.TranscriptEvent{
		{Speaker: pipeline.SpeakerRemote, Text: "We use a sharded Postgres setup."},
		{Speaker: pipeline.SpeakerLocal, Text: "Each shard holds one tenant."},
	}
	plan := f.Format(remoteEvent("How would you rebalance the shards?"), recent)

	if !strings.Contains(plan.UserPrompt, "RECENT DISCUSSION:") {
		t.Fatalf("user prompt missing discussion section:\n%s", plan.UserPrompt)
	}
	if !strings.Contains(plan.UserPrompt, "[REMOTE] We use a sharded Postgres setup.") {
		t.Errorf("user prompt missing remote context line:\n%s", plan.UserPrompt)
	}
	if !strings.Contains(plan.UserPrompt, "[LOCAL] Each shard holds one tenant.") {
		t.Errorf("user prompt missing local context line:\n%s", plan.UserPrompt)
	}
	if idx := strings.Index(plan.UserPrompt, "INTERVIEWER'S QUESTION:"); idx < strings.Index(plan.UserPrompt, "RECENT DISCUSSION:") {
		t.Error("question rendered before the discussion context")
	}

	bare := f.Format(remoteEvent("How would you rebalance the shards?"), nil)
	if strings.Contains(bare.UserPrompt, "RECENT DISCUSSION:") {
		t.Errorf("empty context still rendered a discussion section:\n%s", bare.UserPrompt)
	}
}
