package store

import (
	"context"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/gate"
	"github.com/sotto-ai/sotto/internal/pipeline"
)

// Memory is an in-process [Store] used when no database is configured and
// in tests.
type Memory struct {
	mu          sync.RWMutex
	transcripts map[string][]pipeline.TranscriptEvent
	decisions   map[string][]gate.Decision
	answers     map[string][]answer.Answer
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		transcripts: make(map[string][]pipeline.TranscriptEvent),
		decisions:   make(map[string][]gate.Decision),
		answers:     make(map[string][]answer.Answer),
	}
}

// WriteTranscript implements [Store].
func (m *Memory) WriteTranscript(_ context.Context, sessionID string, ev pipeline.TranscriptEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[sessionID] = append(m.transcripts[sessionID], ev)
	return nil
}

// WriteDecision implements [Store].
func (m *Memory) WriteDecision(_ context.Context, sessionID string, d gate.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[sessionID] = append(m.decisions[sessionID], d)
	return nil
}

// WriteAnswer implements [Store].
func (m *Memory) WriteAnswer(_ context.Context, sessionID string, a answer.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[sessionID] = append(m.answers[sessionID], a)
	return nil
}

// RecentTranscripts implements [Store].
func (m *Memory) RecentTranscripts(_ context.Context, sessionID string, maxAge time.Duration) ([]pipeline.TranscriptEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)
	out := []pipeline.TranscriptEvent{}
	for _, ev := range m.transcripts[sessionID] {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Decisions returns all recorded decisions for a session.
func (m *Memory) Decisions(sessionID string) []gate.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]gate.Decision, len(m.decisions[sessionID]))
	copy(out, m.decisions[sessionID])
	return out
}

// Answers returns all recorded answers for a session.
func (m *Memory) Answers(sessionID string) []answer.Answer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]answer.Answer, len(m.answers[sessionID]))
	copy(out, m.answers[sessionID])
	return out
}

// Close implements [Store].
func (m *Memory) Close() error { return nil }
