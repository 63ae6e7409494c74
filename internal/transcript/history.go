// Package transcript keeps the conversation record: a bounded history of
// finalized utterances and a vocabulary normalizer that repairs recognition
// errors on domain terms before display and storage.
package transcript

import (
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

// History is a bounded buffer of finalized transcript events. It enforces
// both a maximum entry count and a maximum age; entries exceeding either
// limit are evicted on every Add. All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []pipeline.TranscriptEvent
	maxSize int
	maxAge  time.Duration
}

// NewHistory creates a history retaining at most maxSize events, each for
// at most maxAge.
func NewHistory(maxSize int, maxAge time.Duration) *History {
	return &History{
		entries: make([]pipeline.TranscriptEvent, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add appends an event and evicts entries that exceed the configured
// limits.
func (h *History) Add(ev pipeline.TranscriptEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, ev)
	h.evict()
}

// Recent returns up to maxEntries events within the age window, oldest
// first.
func (h *History) Recent(maxEntries int) []pipeline.TranscriptEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().Add(-h.maxAge)
	result := make([]pipeline.TranscriptEvent, 0, maxEntries)

	for i := len(h.entries) - 1; i >= 0 && len(result) < maxEntries; i-- {
		e := h.entries[i]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		result = append(result, e)
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Len returns the current number of buffered events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// evict removes entries that are too old or exceed maxSize. Must be
// called with h.mu held. Survivors are copied to a fresh backing array so
// evicted entries do not pin memory for the session's lifetime.
func (h *History) evict() {
	cutoff := time.Now().Add(-h.maxAge)

	start := 0
	for start < len(h.entries) && h.entries[start].Timestamp.Before(cutoff) {
		start++
	}

	keep := h.entries[start:]
	if len(keep) > h.maxSize {
		keep = keep[len(keep)-h.maxSize:]
	}

	if start > 0 || len(keep) < len(h.entries) {
		fresh := make([]pipeline.TranscriptEvent, len(keep), h.maxSize)
		copy(fresh, keep)
		h.entries = fresh
	}
}
