package energy

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

// frame builds a 30 ms 16 kHz frame whose samples all have the given
// amplitude.
func frame(amplitude int16) []byte {
	buf := make([]byte, audio.FrameBytes(16000, 30))
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(amplitude))
	}
	return buf
}

func newSession(t *testing.T, hysteresis int) vad.SessionHandle {
	t.Helper()
	s, err := New().NewSession(vad.Config{
		SampleRate:       16000,
		FrameMs:          30,
		EnergyThreshold:  500,
		HysteresisFrames: hysteresis,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestEnergyClassification(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)

	loud := frame(4000)
	quiet := frame(10)

	r, err := s.ProcessFrame(loud)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if !r.Speech {
		t.Fatalf("loud frame classified as silence (score=%f)", r.Score)
	}

	r, err = s.ProcessFrame(quiet)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if r.Speech {
		t.Fatalf("quiet frame classified as speech (score=%f)", r.Score)
	}
}

func TestHysteresisRejectsSpikes(t *testing.T) {
	t.Parallel()

	s := newSession(t, 3)

	// A single loud frame in silence must not flip the state.
	r, _ := s.ProcessFrame(frame(4000))
	if r.Speech {
		t.Fatal("single spike flipped state to speech")
	}
	r, _ = s.ProcessFrame(frame(10))
	if r.Speech {
		t.Fatal("state should remain silence after spike")
	}

	// Three consecutive loud frames flip the state.
	s.Reset()
	for i := 0; i < 2; i++ {
		r, _ = s.ProcessFrame(frame(4000))
		if r.Speech {
			t.Fatalf("state flipped after %d frames, want 3", i+1)
		}
	}
	r, _ = s.ProcessFrame(frame(4000))
	if !r.Speech {
		t.Fatal("state did not flip after 3 agreeing frames")
	}
}

func TestMalformedFrameFailsFast(t *testing.T) {
	t.Parallel()

	s := newSession(t, 1)

	_, err := s.ProcessFrame(make([]byte, 100))
	var malformed *audio.MalformedFrameError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedFrameError, got %v", err)
	}
	if malformed.Got != 100 || malformed.Want != audio.FrameBytes(16000, 30) {
		t.Fatalf("unexpected error detail: %+v", malformed)
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New().NewSession(vad.Config{}); err == nil {
		t.Fatal("want error for zero config")
	}
}
