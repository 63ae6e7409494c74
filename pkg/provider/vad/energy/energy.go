// Package energy implements a short-window RMS energy voice activity
// detector. It is the default VAD engine: dependency-free, deterministic,
// and fast enough to run inline on the frame-processing path.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

const (
	// defaultThreshold is the RMS amplitude (int16 units) above which a
	// frame counts as speech. Tuned for 16 kHz close-mic capture.
	defaultThreshold = 500

	// defaultHysteresis is the number of consecutive agreeing frames
	// required before the reported state flips.
	defaultHysteresis = 3
)

// Engine creates RMS energy VAD sessions. It implements [vad.Engine].
type Engine struct{}

// New returns an energy VAD engine.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 || cfg.FrameMs <= 0 {
		return nil, fmt.Errorf("energy: sample rate and frame duration must be positive")
	}
	threshold := cfg.EnergyThreshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	hysteresis := cfg.HysteresisFrames
	if hysteresis == 0 {
		hysteresis = defaultHysteresis
	}
	return &session{
		frameBytes: audio.FrameBytes(cfg.SampleRate, cfg.FrameMs),
		threshold:  threshold,
		hysteresis: hysteresis,
	}, nil
}

// session holds per-stream hysteresis state. Not safe for concurrent use;
// each capture line owns exactly one session.
type session struct {
	frameBytes int
	threshold  float64
	hysteresis int

	inSpeech bool
	// agreeing counts consecutive frames whose raw classification
	// disagrees with the current reported state.
	agreeing int
	closed   bool
}

// ProcessFrame implements [vad.SessionHandle]. The raw classification is
// RMS energy against the threshold; the reported state only flips after
// hysteresis consecutive frames disagree with it.
func (s *session) ProcessFrame(frame []byte) (vad.Result, error) {
	if s.closed {
		return vad.Result{}, fmt.Errorf("energy: session is closed")
	}
	if len(frame) != s.frameBytes || len(frame)%audio.BytesPerSample != 0 {
		return vad.Result{}, &audio.MalformedFrameError{Got: len(frame), Want: s.frameBytes}
	}

	rms := rmsEnergy(frame)
	raw := rms > s.threshold

	if raw == s.inSpeech {
		s.agreeing = 0
	} else {
		s.agreeing++
		if s.agreeing >= s.hysteresis {
			s.inSpeech = raw
			s.agreeing = 0
		}
	}

	return vad.Result{Speech: s.inSpeech, Score: rms}, nil
}

// Reset implements [vad.SessionHandle].
func (s *session) Reset() {
	s.inSpeech = false
	s.agreeing = 0
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	s.closed = true
	return nil
}

// rmsEnergy computes the root-mean-square amplitude of a little-endian
// int16 PCM frame.
func rmsEnergy(frame []byte) float64 {
	n := len(frame) / audio.BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(frame[i*2:]))
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}
