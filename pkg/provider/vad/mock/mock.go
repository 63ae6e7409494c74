// Package mock provides a scripted VAD engine for tests.
package mock

import (
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

// Engine returns sessions that classify frames using a caller-supplied
// function. It implements [vad.Engine].
type Engine struct {
	// ClassifyFunc decides the result for each frame. When nil, every
	// frame is classified as silence.
	ClassifyFunc func(frame []byte) (vad.Result, error)
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(vad.Config) (vad.SessionHandle, error) {
	return &Session{classify: e.ClassifyFunc}, nil
}

// Session is a scripted VAD session.
type Session struct {
	classify func(frame []byte) (vad.Result, error)

	// ResetCalls counts Reset invocations.
	ResetCalls int
}

// ProcessFrame implements [vad.SessionHandle].
func (s *Session) ProcessFrame(frame []byte) (vad.Result, error) {
	if s.classify == nil {
		return vad.Result{}, nil
	}
	return s.classify(frame)
}

// Reset implements [vad.SessionHandle].
func (s *Session) Reset() { s.ResetCalls++ }

// Close implements [vad.SessionHandle].
func (s *Session) Close() error { return nil }
