package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/gate"
	"github.com/sotto-ai/sotto/internal/pipeline"
)

const ddl = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session_timestamp
    ON transcript_entries (session_id, timestamp);

CREATE TABLE IF NOT EXISTS gate_decisions (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    outcome     TEXT         NOT NULL,
    reason      TEXT         NOT NULL,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    decided_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_gate_decisions_session
    ON gate_decisions (session_id, decided_at);

CREATE TABLE IF NOT EXISTS answers (
    plan_id     TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    question    TEXT         NOT NULL,
    template    TEXT         NOT NULL,
    language    TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    elapsed_ns  BIGINT       NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_answers_session
    ON answers (session_id, created_at);
`

// Postgres is the pgx-backed session store.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn and ensures the schema exists. The DDL is
// idempotent and safe to run on every start.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WriteTranscript implements [Store].
func (s *Postgres) WriteTranscript(ctx context.Context, sessionID string, ev pipeline.TranscriptEvent) error {
	const q = `
		INSERT INTO transcript_entries (session_id, speaker, text, confidence, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q, sessionID, ev.Speaker.String(), ev.Text, ev.Confidence, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("store: write transcript: %w", err)
	}
	return nil
}

// WriteDecision implements [Store].
func (s *Postgres) WriteDecision(ctx context.Context, sessionID string, d gate.Decision) error {
	const q = `
		INSERT INTO gate_decisions (session_id, outcome, reason, speaker, text, confidence, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		sessionID,
		string(d.Outcome),
		string(d.Reason),
		d.Event.Speaker.String(),
		d.Event.Text,
		d.Intent.Confidence,
		d.At,
	)
	if err != nil {
		return fmt.Errorf("store: write decision: %w", err)
	}
	return nil
}

// WriteAnswer implements [Store].
func (s *Postgres) WriteAnswer(ctx context.Context, sessionID string, a answer.Answer) error {
	const q = `
		INSERT INTO answers (plan_id, session_id, question, template, language, content, elapsed_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (plan_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		a.Plan.ID,
		sessionID,
		a.Plan.Question,
		string(a.Plan.Template),
		a.Plan.Language,
		a.Content,
		a.Elapsed.Nanoseconds(),
		a.Plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: write answer: %w", err)
	}
	return nil
}

// RecentTranscripts implements [Store].
func (s *Postgres) RecentTranscripts(ctx context.Context, sessionID string, maxAge time.Duration) ([]pipeline.TranscriptEvent, error) {
	const q = `
		SELECT speaker, text, confidence, timestamp
		FROM   transcript_entries
		WHERE  session_id = $1
		  AND  timestamp  >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID, maxAge.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("store: recent transcripts: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.TranscriptEvent, error) {
		var (
			ev      pipeline.TranscriptEvent
			speaker string
		)
		if err := row.Scan(&speaker, &ev.Text, &ev.Confidence, &ev.Timestamp); err != nil {
			return pipeline.TranscriptEvent{}, err
		}
		ev.Speaker = parseSpeaker(speaker)
		return ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan transcripts: %w", err)
	}
	if events == nil {
		events = []pipeline.TranscriptEvent{}
	}
	return events, nil
}

// Close implements [Store].
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func parseSpeaker(s string) pipeline.Speaker {
	switch s {
	case "REMOTE":
		return pipeline.SpeakerRemote
	case "LOCAL":
		return pipeline.SpeakerLocal
	default:
		return pipeline.SpeakerNoise
	}
}
