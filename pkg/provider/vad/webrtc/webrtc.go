// Package webrtc implements a VAD engine backed by the WebRTC voice
// activity detector. The detector only accepts 10, 20, or 30 ms frames at
// 8, 16, 32, or 48 kHz; configurations outside that grid are rejected at
// session creation.
package webrtc

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

const defaultHysteresis = 3

// Engine creates WebRTC VAD sessions. It implements [vad.Engine].
type Engine struct {
	mode int
}

// Option configures an [Engine].
type Option func(*Engine)

// WithMode sets the detector aggressiveness (0 least, 3 most aggressive).
// The default is 2.
func WithMode(mode int) Option {
	return func(e *Engine) { e.mode = mode }
}

// New returns a WebRTC VAD engine.
func New(opts ...Option) *Engine {
	e := &Engine{mode: 2}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements [vad.Engine]. Each session owns its own detector
// instance so streams are fully independent.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	switch cfg.FrameMs {
	case 10, 20, 30:
	default:
		return nil, fmt.Errorf("webrtc: unsupported frame duration %d ms (want 10, 20, or 30)", cfg.FrameMs)
	}
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("webrtc: unsupported sample rate %d Hz", cfg.SampleRate)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create detector: %w", err)
	}
	if err := v.SetMode(e.mode); err != nil {
		return nil, fmt.Errorf("webrtc: set mode %d: %w", e.mode, err)
	}

	hysteresis := cfg.HysteresisFrames
	if hysteresis == 0 {
		hysteresis = defaultHysteresis
	}
	return &session{
		vad:        v,
		sampleRate: cfg.SampleRate,
		frameBytes: audio.FrameBytes(cfg.SampleRate, cfg.FrameMs),
		hysteresis: hysteresis,
	}, nil
}

// session wraps one detector instance with hysteresis smoothing. Not safe
// for concurrent use.
type session struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int
	hysteresis int

	inSpeech bool
	agreeing int
	closed   bool
}

// ProcessFrame implements [vad.SessionHandle].
func (s *session) ProcessFrame(frame []byte) (vad.Result, error) {
	if s.closed {
		return vad.Result{}, fmt.Errorf("webrtc: session is closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Result{}, &audio.MalformedFrameError{Got: len(frame), Want: s.frameBytes}
	}

	raw, err := s.vad.Process(s.sampleRate, frame)
	if err != nil {
		return vad.Result{}, fmt.Errorf("webrtc: process frame: %w", err)
	}

	if raw == s.inSpeech {
		s.agreeing = 0
	} else {
		s.agreeing++
		if s.agreeing >= s.hysteresis {
			s.inSpeech = raw
			s.agreeing = 0
		}
	}

	score := 0.0
	if raw {
		score = 1.0
	}
	return vad.Result{Speech: s.inSpeech, Score: score}, nil
}

// Reset implements [vad.SessionHandle].
func (s *session) Reset() {
	s.inSpeech = false
	s.agreeing = 0
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	if !s.closed {
		s.closed = true
		s.vad.Close()
	}
	return nil
}
