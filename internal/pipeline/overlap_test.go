package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/sotto-ai/sotto/pkg/audio"
)

const (
	chRemote = audio.SourceChannel("remote_line")
	chLocal  = audio.SourceChannel("local_mic")
)

func frameAt(ch audio.SourceChannel, at time.Time) audio.Frame {
	return audio.Frame{
		PCM:        make([]byte, audio.FrameBytes(16000, 30)),
		SampleRate: 16000,
		Channel:    ch,
		Captured:   at,
	}
}

func TestAttribute(t *testing.T) {
	a := NewAttributor(chRemote, chLocal)
	now := time.Now()

	t.Run("remote speech", func(t *testing.T) {
		sp, err := a.Attribute(frameAt(chRemote, now), true)
		if err != nil || sp != SpeakerRemote {
			t.Errorf("got (%v, %v), want (REMOTE, nil)", sp, err)
		}
	})

	t.Run("local speech", func(t *testing.T) {
		sp, err := a.Attribute(frameAt(chLocal, now), true)
		if err != nil || sp != SpeakerLocal {
			t.Errorf("got (%v, %v), want (LOCAL, nil)", sp, err)
		}
	})

	t.Run("silence is noise regardless of channel", func(t *testing.T) {
		sp, err := a.Attribute(frameAt(chRemote, now), false)
		if err != nil || sp != SpeakerNoise {
			t.Errorf("got (%v, %v), want (NOISE, nil)", sp, err)
		}
	})

	t.Run("unknown channel is fatal", func(t *testing.T) {
		_, err := a.Attribute(frameAt("ghost", now), true)
		var uce *audio.UnknownChannelError
		if !errors.As(err, &uce) {
			t.Errorf("got %v, want UnknownChannelError", err)
		}
	})
}

func TestResolverRemoteWinsOverlap(t *testing.T) {
	window := 30 * time.Millisecond
	base := time.Unix(100, 0)

	// The winner must not depend on which source delivered first.
	orders := map[string][]Speaker{
		"local first":  {SpeakerLocal, SpeakerRemote},
		"remote first": {SpeakerRemote, SpeakerLocal},
	}
	channels := map[Speaker]audio.SourceChannel{
		SpeakerRemote: chRemote,
		SpeakerLocal:  chLocal,
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(window)
			for _, sp := range order {
				if got := r.Observe(sp, frameAt(channels[sp], base)); len(got) != 0 {
					t.Fatalf("window closed early: %+v", got)
				}
			}

			closed := r.Observe(SpeakerNoise, frameAt(chRemote, base.Add(window)))
			if len(closed) != 1 {
				t.Fatalf("expected 1 resolved window, got %d", len(closed))
			}
			win := closed[0]
			if win.Speaker != SpeakerRemote {
				t.Errorf("winner = %v, want REMOTE", win.Speaker)
			}
			if len(win.Frames) != 1 || win.Frames[0].Channel != chRemote {
				t.Errorf("surviving frames = %+v, want only the remote frame", win.Frames)
			}
		})
	}
}

func TestResolverSequentialWindows(t *testing.T) {
	window := 30 * time.Millisecond
	base := time.Unix(100, 0)
	r := NewResolver(window)

	if got := r.Observe(SpeakerLocal, frameAt(chLocal, base)); len(got) != 0 {
		t.Fatalf("first window closed early: %+v", got)
	}

	closed := r.Observe(SpeakerRemote, frameAt(chRemote, base.Add(window)))
	if len(closed) != 1 || closed[0].Speaker != SpeakerLocal {
		t.Fatalf("expected the local window to close, got %+v", closed)
	}

	closed = r.Flush()
	if len(closed) != 1 || closed[0].Speaker != SpeakerRemote {
		t.Fatalf("expected the remote window on flush, got %+v", closed)
	}
}

func TestResolverNoiseOnlyWindowProducesNothing(t *testing.T) {
	window := 30 * time.Millisecond
	base := time.Unix(100, 0)
	r := NewResolver(window)

	r.Observe(SpeakerNoise, frameAt(chRemote, base))
	r.Observe(SpeakerNoise, frameAt(chLocal, base))
	if closed := r.Observe(SpeakerNoise, frameAt(chRemote, base.Add(window))); len(closed) != 0 {
		t.Errorf("noise-only window resolved to %+v", closed)
	}
	if closed := r.Flush(); len(closed) != 0 {
		t.Errorf("flush of noise-only state resolved to %+v", closed)
	}
}
