package transcript

import (
	"testing"
	"time"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

func histEvent(sp pipeline.Speaker, text string, age time.Duration) pipeline.TranscriptEvent {
	return pipeline.TranscriptEvent{
		Speaker:   sp,
		Text:      text,
		Timestamp: time.Now().Add(-age),
	}
}

func TestHistoryEvictsBySize(t *testing.T) {
	h := NewHistory(3, time.Hour)
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		h.Add(histEvent(pipeline.SpeakerRemote, text, 0))
	}

	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	recent := h.Recent(10)
	if len(recent) != 3 || recent[0].Text != "three" || recent[2].Text != "five" {
		t.Errorf("Recent = %+v, want [three four five]", recent)
	}
}

func TestHistoryEvictsByAge(t *testing.T) {
	h := NewHistory(10, 50*time.Millisecond)
	h.Add(histEvent(pipeline.SpeakerRemote, "stale", 200*time.Millisecond))
	h.Add(histEvent(pipeline.SpeakerRemote, "fresh", 0))

	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
	if recent := h.Recent(10); len(recent) != 1 || recent[0].Text != "fresh" {
		t.Errorf("Recent = %+v, want only the fresh event", recent)
	}
}

func TestHistoryRecentHonorsLimit(t *testing.T) {
	h := NewHistory(10, time.Hour)
	for _, text := range []string{"a", "b", "c", "d"} {
		h.Add(histEvent(pipeline.SpeakerLocal, text, 0))
	}

	recent := h.Recent(2)
	if len(recent) != 2 || recent[0].Text != "c" || recent[1].Text != "d" {
		t.Errorf("Recent(2) = %+v, want the two newest in order", recent)
	}
}
