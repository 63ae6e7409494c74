// Package gate is the central arbiter of the decision engine: it consumes
// finalized transcript events, classifies remote utterances for question
// intent, and authorizes at most one answer trigger per cooldown window.
//
// The gate is a two-state machine, OPEN and SUPPRESSED. ALLOW moves it to
// SUPPRESSED; new remote speech, a context-change signal, or the cooldown
// timeout move it back to OPEN. All transitions, including the timeout
// callback, are serialized under one mutex, and a generation counter makes
// a timeout that lost the race against a context-change signal a no-op —
// context change takes precedence when both fire in the same tick.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/intent"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/pipeline"
)

// Outcome is the gate's verdict on one transcript event.
type Outcome string

const (
	OutcomeAllow    Outcome = "ALLOW"
	OutcomeSuppress Outcome = "SUPPRESS"
)

// Reason explains an outcome. ALLOW decisions carry the matched intent
// rule; SUPPRESS decisions carry one of the constants below.
type Reason string

const (
	// ReasonNotRemote suppresses events from any speaker but REMOTE.
	// The classifier is never consulted for these.
	ReasonNotRemote Reason = "NOT_REMOTE"

	// ReasonNoIntent suppresses remote utterances that matched no
	// question rule. This is the default path, not an error.
	ReasonNoIntent Reason = "NO_INTENT"
)

// Decision is the gate's immutable record of one evaluation.
type Decision struct {
	Outcome Outcome                  `json:"outcome"`
	Reason  Reason                   `json:"reason"`
	Event   pipeline.TranscriptEvent `json:"event"`
	Intent  intent.Result            `json:"intent"`
	At      time.Time                `json:"at"`
}

// Allowed reports whether the decision authorizes answer generation.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Config tunes the gate.
type Config struct {
	// CooldownTimeout releases the suppression window when neither remote
	// speech nor a context change arrives first.
	CooldownTimeout time.Duration

	// Classifier scores remote utterances. Defaults to
	// intent.NewClassifier().
	Classifier *intent.Classifier

	// Log defaults to slog.Default().
	Log *slog.Logger

	// Metrics is optional.
	Metrics *observe.Metrics
}

// Gate owns the cooldown state. It is safe for concurrent use, though in
// practice only the event loop and the timeout callback ever touch it.
type Gate struct {
	cfg Config

	mu       sync.Mutex
	cooldown CooldownState
	gen      uint64
}

// New creates an open gate.
func New(cfg Config) *Gate {
	if cfg.CooldownTimeout <= 0 {
		cfg.CooldownTimeout = 2 * time.Second
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Gate{
		cfg:      cfg,
		cooldown: CooldownState{ReleaseReason: ReleaseNone},
	}
}

// OnTranscript evaluates one finalized event and returns the decision.
//
// For REMOTE events the gate first applies release condition (a): new
// remote speech always re-opens the gate, so the fresh utterance is
// evaluated against an open gate even while a previous answer is still in
// flight. Non-REMOTE events are suppressed without touching the
// classifier and without disturbing the cooldown.
func (g *Gate) OnTranscript(ctx context.Context, ev pipeline.TranscriptEvent) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	u, isRemote := ev.Remote()
	if !isRemote {
		return g.record(ctx, Decision{
			Outcome: OutcomeSuppress,
			Reason:  ReasonNotRemote,
			Event:   ev,
			At:      now,
		})
	}

	if g.cooldown.Active {
		g.releaseLocked(ctx, ReleaseRemoteSpeech)
	}

	res := g.cfg.Classifier.Classify(u)
	if !res.IsQuestion {
		return g.record(ctx, Decision{
			Outcome: OutcomeSuppress,
			Reason:  ReasonNoIntent,
			Event:   ev,
			Intent:  res,
			At:      now,
		})
	}

	g.cooldown = CooldownState{Active: true, ActivatedAt: now}
	g.gen++
	gen := g.gen
	time.AfterFunc(g.cfg.CooldownTimeout, func() {
		g.timeout(ctx, gen)
	})

	return g.record(ctx, Decision{
		Outcome: OutcomeAllow,
		Reason:  Reason(res.Rule),
		Event:   ev,
		Intent:  res,
		At:      now,
	})
}

// OnContextChange applies release condition (b): the shared visual
// context changed materially, so a pending question is considered answered
// or stale.
func (g *Gate) OnContextChange(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cooldown.Active {
		return
	}
	g.releaseLocked(ctx, ReleaseContextChange)
}

// timeout applies release condition (c). A stale generation means remote
// speech or a context change released the window first; the callback then
// does nothing.
func (g *Gate) timeout(ctx context.Context, gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || !g.cooldown.Active {
		return
	}
	g.releaseLocked(ctx, ReleaseTimeout)
}

// releaseLocked clears the cooldown. Callers hold g.mu.
func (g *Gate) releaseLocked(ctx context.Context, reason ReleaseReason) {
	g.cooldown.Active = false
	g.cooldown.ReleaseReason = reason
	g.gen++

	g.cfg.Log.Debug("cooldown released", "reason", reason)
	g.cfg.Metrics.RecordCooldownRelease(ctx, string(reason))
}

// Cooldown returns a snapshot of the cooldown state.
func (g *Gate) Cooldown() CooldownState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldown
}

func (g *Gate) record(ctx context.Context, d Decision) Decision {
	g.cfg.Log.Info("gate decision",
		"outcome", d.Outcome,
		"reason", d.Reason,
		"speaker", d.Event.Speaker,
		"confidence", d.Intent.Confidence,
	)
	g.cfg.Metrics.RecordGateDecision(ctx, string(d.Outcome), string(d.Reason))
	return d
}
