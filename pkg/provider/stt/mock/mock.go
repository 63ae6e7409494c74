// Package mock provides a scripted STT provider for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// Provider hands out pre-created sessions in order. It implements
// [stt.Provider].
type Provider struct {
	mu       sync.Mutex
	sessions []*Session

	// StartErr, when non-nil, is returned from StartStream.
	StartErr error
}

// AddSession queues a session to be returned by the next StartStream call.
func (p *Provider) AddSession(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, s)
}

// StartStream implements [stt.Provider]. When no session was queued, a
// fresh empty session is returned.
func (p *Provider) StartStream(_ context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return NewSession(), nil
	}
	s := p.sessions[0]
	p.sessions = p.sessions[1:]
	return s, nil
}

// Session is a scripted STT session. Tests push transcripts via EmitFinal
// and inspect audio received through SendAudio.
type Session struct {
	mu     sync.Mutex
	audio  [][]byte
	closed bool

	finals chan stt.Transcript
	once   sync.Once
}

// NewSession creates an open mock session.
func NewSession() *Session {
	return &Session{finals: make(chan stt.Transcript, 16)}
}

// SendAudio implements [stt.SessionHandle].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock stt: session is closed")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	return nil
}

// Audio returns all chunks received so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// EmitFinal delivers a committed transcript to the session consumer.
func (s *Session) EmitFinal(t stt.Transcript) {
	s.finals <- t
}

// Finals implements [stt.SessionHandle].
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close implements [stt.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.finals) })
	return nil
}
