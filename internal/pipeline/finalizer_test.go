package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

func startFinalizer(t *testing.T, cfg FinalizerConfig) *Finalizer {
	t.Helper()
	fin := NewFinalizer(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go fin.Run(ctx)
	return fin
}

func waitEvent(t *testing.T, fin *Finalizer, timeout time.Duration) TranscriptEvent {
	t.Helper()
	select {
	case ev, ok := <-fin.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a transcript event")
	}
	return TranscriptEvent{}
}

func expectNoEvent(t *testing.T, fin *Finalizer, d time.Duration) {
	t.Helper()
	select {
	case ev := <-fin.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(d):
	}
}

func TestFinalizeAfterTrailingSilence(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  30 * time.Millisecond,
		TextGrace:       time.Second,
		MinSpeechFrames: 3,
	})

	fin.ObserveSpeech(SpeakerRemote, 5)
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "tell me about", Confidence: 0.9})
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "your experience", Confidence: 0.7})

	ev := waitEvent(t, fin, time.Second)
	if ev.Speaker != SpeakerRemote {
		t.Errorf("speaker = %v, want REMOTE", ev.Speaker)
	}
	if ev.Text != "tell me about your experience" {
		t.Errorf("text = %q", ev.Text)
	}
	if ev.Confidence < 0.79 || ev.Confidence > 0.81 {
		t.Errorf("confidence = %v, want mean 0.8", ev.Confidence)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestSpeechResetsSilenceCountdown(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  50 * time.Millisecond,
		TextGrace:       time.Second,
		MinSpeechFrames: 1,
	})

	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "still", Confidence: 0.9})
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep speaking faster than the silence timeout for a while.
		for i := 0; i < 6; i++ {
			fin.ObserveSpeech(SpeakerRemote, 1)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	// First fragment arrives before any speech: it is orphaned and dropped,
	// so re-deliver once the utterance is underway.
	time.Sleep(30 * time.Millisecond)
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "talking", Confidence: 0.9})

	select {
	case ev := <-fin.Events():
		t.Fatalf("finalized while speech was ongoing: %+v", ev)
	case <-done:
	}

	ev := waitEvent(t, fin, time.Second)
	if ev.Text != "talking" {
		t.Errorf("text = %q, want %q", ev.Text, "talking")
	}
}

func TestShortSegmentDiscarded(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  20 * time.Millisecond,
		TextGrace:       50 * time.Millisecond,
		MinSpeechFrames: 10,
	})

	fin.ObserveSpeech(SpeakerLocal, 4)
	fin.ObserveFragment(SpeakerLocal, stt.Transcript{Text: "uh", Confidence: 0.5})

	expectNoEvent(t, fin, 200*time.Millisecond)
}

func TestLateFragmentFinalizesWithinGrace(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  20 * time.Millisecond,
		TextGrace:       500 * time.Millisecond,
		MinSpeechFrames: 1,
	})

	fin.ObserveSpeech(SpeakerRemote, 12)

	// Recognition lags past the silence boundary.
	time.Sleep(60 * time.Millisecond)
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "what is a goroutine?", Confidence: 0.95})

	ev := waitEvent(t, fin, time.Second)
	if ev.Text != "what is a goroutine?" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestNoTextEverArrivesDiscards(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  20 * time.Millisecond,
		TextGrace:       40 * time.Millisecond,
		MinSpeechFrames: 1,
	})

	fin.ObserveSpeech(SpeakerRemote, 12)
	expectNoEvent(t, fin, 200*time.Millisecond)

	// The state machine must be reusable after the discard.
	fin.ObserveSpeech(SpeakerRemote, 12)
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "hello again", Confidence: 0.9})
	ev := waitEvent(t, fin, time.Second)
	if ev.Text != "hello again" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestSpeakersFinalizeIndependently(t *testing.T) {
	fin := startFinalizer(t, FinalizerConfig{
		SilenceTimeout:  30 * time.Millisecond,
		TextGrace:       time.Second,
		MinSpeechFrames: 1,
	})

	fin.ObserveSpeech(SpeakerRemote, 8)
	fin.ObserveSpeech(SpeakerLocal, 8)
	fin.ObserveFragment(SpeakerRemote, stt.Transcript{Text: "any questions?", Confidence: 0.9})
	fin.ObserveFragment(SpeakerLocal, stt.Transcript{Text: "let me think", Confidence: 0.9})

	seen := map[Speaker]string{}
	for i := 0; i < 2; i++ {
		ev := waitEvent(t, fin, time.Second)
		seen[ev.Speaker] = ev.Text
	}
	if seen[SpeakerRemote] != "any questions?" {
		t.Errorf("remote text = %q", seen[SpeakerRemote])
	}
	if seen[SpeakerLocal] != "let me think" {
		t.Errorf("local text = %q", seen[SpeakerLocal])
	}
}
