// Package store persists the session record: finalized transcripts, gate
// decisions and generated answers. Persistence is strictly observational —
// nothing in the decision path reads it back, so a slow or failing store
// can never delay or corrupt a gate decision.
package store

import (
	"context"
	"time"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/gate"
	"github.com/sotto-ai/sotto/internal/pipeline"
)

// Store is the session persistence boundary. Implementations must be safe
// for concurrent use.
type Store interface {
	// WriteTranscript appends one finalized event to the session log.
	WriteTranscript(ctx context.Context, sessionID string, ev pipeline.TranscriptEvent) error

	// WriteDecision appends one gate decision.
	WriteDecision(ctx context.Context, sessionID string, d gate.Decision) error

	// WriteAnswer appends one generated answer.
	WriteAnswer(ctx context.Context, sessionID string, a answer.Answer) error

	// RecentTranscripts returns the session's events no older than
	// maxAge, oldest first.
	RecentTranscripts(ctx context.Context, sessionID string, maxAge time.Duration) ([]pipeline.TranscriptEvent, error)

	// Close releases the store's resources.
	Close() error
}
