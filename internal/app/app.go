// Package app wires all sotto subsystems into a running engine.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the event loop, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/gate"
	"github.com/sotto-ai/sotto/internal/health"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/pipeline"
	"github.com/sotto-ai/sotto/internal/present"
	"github.com/sotto-ai/sotto/internal/store"
	"github.com/sotto-ai/sotto/internal/transcript"
	"github.com/sotto-ai/sotto/internal/transcript/phonetic"
	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/llm"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

// answerContextEvents caps how many prior utterances an answer prompt
// carries as conversation context.
const answerContextEvents = 10

// Providers holds one value per provider slot. Nil means the provider is
// not configured. Populated by main.go from the config.
type Providers struct {
	// Sources are the audio lines, one per configured channel.
	Sources []audio.Source

	VAD vad.Engine
	STT stt.Provider
	LLM llm.Provider
}

// App owns all subsystem lifetimes and drives the decision loop.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger

	sessionID  string
	metrics    *observe.Metrics
	store      store.Store
	history    *transcript.History
	normalizer *transcript.Normalizer
	formatter  *answer.Formatter
	gate       *gate.Gate
	dispatcher *answer.Dispatcher
	server     *present.Server
	pipe       *pipeline.Pipeline

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a session store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metrics instead of creating them from the global
// meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the application logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	a.sessionID = cfg.Store.SessionID
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: create metrics: %w", err)
		}
		a.metrics = m
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.gate = gate.New(gate.Config{
		CooldownTimeout: cfg.Pipeline.CooldownTimeout(),
		Log:             a.log,
		Metrics:         a.metrics,
	})

	historyMaxAge := time.Duration(cfg.Pipeline.HistoryMaxAgeMin) * time.Minute
	a.history = transcript.NewHistory(cfg.Pipeline.HistorySize, historyMaxAge)
	a.rehydrateHistory(ctx, historyMaxAge)
	a.normalizer = transcript.NewNormalizer(phonetic.New(), cfg.Profile.Skills)

	a.formatter = answer.NewFormatter(answer.PreferenceProfile{
		PreferredLanguage: cfg.Profile.PreferredLanguage,
		Skills:            cfg.Profile.Skills,
		Resume:            cfg.Profile.Resume,
	})

	if providers.LLM != nil {
		a.dispatcher = answer.NewDispatcher(providers.LLM,
			answer.WithLogger(a.log),
			answer.WithMetrics(a.metrics),
		)
	} else {
		a.log.Warn("no LLM provider configured, allowed questions will not produce answers")
	}

	srv, err := present.New(present.Config{
		ListenAddr: cfg.Server.ListenAddr,
		OnContextChange: func() {
			a.gate.OnContextChange(context.Background())
		},
		Health: health.New(a.healthCheckers()...),
		Log:    a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create presentation server: %w", err)
	}
	a.server = srv

	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	return a, nil
}

// initStore connects session persistence. Without a DSN the record stays
// in memory for the lifetime of the process.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
		a.log.Info("session store connected", "backend", "postgres")
		return nil
	}
	a.store = store.NewMemory()
	a.log.Info("session store connected", "backend", "memory")
	return nil
}

// rehydrateHistory reloads the session's recent transcripts from the
// store, so a restarted engine resumes with its conversation context.
func (a *App) rehydrateHistory(ctx context.Context, maxAge time.Duration) {
	events, err := a.store.RecentTranscripts(ctx, a.sessionID, maxAge)
	if err != nil {
		a.log.Warn("loading prior session transcripts failed", "error", err)
		return
	}
	for _, ev := range events {
		a.history.Add(ev)
	}
	if len(events) > 0 {
		a.log.Info("resumed session history", "events", len(events))
	}
}

// initPipeline assembles the frame path over the configured providers.
func (a *App) initPipeline() error {
	sttProvider := a.providers.STT
	if sttProvider == nil {
		a.log.Warn("no STT provider configured, utterances will finalize without text and be discarded")
		sttProvider = noopSTT{}
	}

	p, err := pipeline.New(pipeline.Config{
		SampleRate:         a.cfg.Audio.SampleRate,
		FrameMs:            a.cfg.Audio.FrameMs,
		RemoteChannel:      audio.SourceChannel(a.cfg.Audio.RemoteChannel),
		LocalChannel:       audio.SourceChannel(a.cfg.Audio.LocalChannel),
		SilenceTimeout:     a.cfg.Pipeline.SilenceTimeout(),
		TextGrace:          a.cfg.Pipeline.TextGrace(),
		MinSpeechFrames:    a.cfg.Pipeline.MinSpeechFrames,
		VADHysteresis:      a.cfg.Pipeline.VADHysteresisFrames,
		VADEnergyThreshold: optFloat(a.cfg.Providers.VAD.Options, "threshold"),
		Language:           optString(a.cfg.Providers.STT.Options, "language"),
	}, pipeline.Deps{
		Sources: a.providers.Sources,
		VAD:     a.providers.VAD,
		STT:     sttProvider,
		Log:     a.log,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	a.pipe = p

	for _, src := range a.providers.Sources {
		a.closers = append(a.closers, src.Close)
	}
	return nil
}

// healthCheckers builds the readiness probes for the configured backends.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if pg, ok := a.store.(*store.Postgres); ok {
		checkers = append(checkers, health.Checker{Name: "postgres", Check: pg.Ping})
	}
	return checkers
}

// Run starts the presentation server, the pipeline and the decision loop,
// and blocks until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.pipe.Run(ctx) })
	g.Go(func() error { return a.eventLoop(ctx) })
	if a.dispatcher != nil {
		g.Go(func() error { return a.resultLoop(ctx) })
	}

	a.log.Info("engine running",
		"session_id", a.sessionID,
		"listen_addr", a.cfg.Server.ListenAddr,
	)

	err := g.Wait()
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	return err
}

// eventLoop consumes finalized utterances: normalize, record, publish,
// gate, and dispatch answer plans for allowed questions.
func (a *App) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-a.pipe.Events():
			if !ok {
				return nil
			}
			a.handleEvent(ctx, ev)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, ev pipeline.TranscriptEvent) {
	// Normalization repairs vocabulary for display and storage only; the
	// gate classifies the text as recognized.
	display := ev
	text, corrections := a.normalizer.Normalize(ev.Text)
	display.Text = text
	for _, c := range corrections {
		a.log.Debug("vocabulary correction",
			"original", c.Original, "corrected", c.Corrected, "confidence", c.Confidence)
	}

	// Capture the conversation leading up to this event before it joins
	// the history, so an answer prompt carries prior turns only.
	recent := a.history.Recent(answerContextEvents)

	a.history.Add(display)
	a.metrics.RecordUtterance(ctx, ev.Speaker.String(), len(display.Text))
	if err := a.store.WriteTranscript(ctx, a.sessionID, display); err != nil {
		a.log.Warn("recording transcript failed", "error", err)
	}
	a.server.Publish("transcript", display)

	d := a.gate.OnTranscript(ctx, ev)
	if err := a.store.WriteDecision(ctx, a.sessionID, d); err != nil {
		a.log.Warn("recording decision failed", "error", err)
	}
	a.server.Publish("decision", d)

	if !d.Allowed() || a.dispatcher == nil {
		return
	}
	plan := a.formatter.Format(display, recent)
	a.log.Info("dispatching answer plan",
		"plan_id", plan.ID, "template", plan.Template, "language", plan.Language)
	a.dispatcher.Dispatch(ctx, plan)
}

// resultLoop records and publishes completed answers.
func (a *App) resultLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ans := <-a.dispatcher.Results():
			if err := a.store.WriteAnswer(ctx, a.sessionID, ans); err != nil {
				a.log.Warn("recording answer failed", "error", err)
			}
			a.server.Publish("answer", ans)
		}
	}
}

// History exposes the in-memory transcript history.
func (a *App) History() *transcript.History { return a.history }

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers
// are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// optString extracts a string from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a float64 from a provider Options map.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// noopSTT stands in when no recognition provider is configured. Sessions
// accept audio and never produce text, so finalized segments are
// discarded by the pipeline.
type noopSTT struct{}

func (noopSTT) StartStream(context.Context, stt.StreamConfig) (stt.SessionHandle, error) {
	return noopSession{finals: make(chan stt.Transcript)}, nil
}

type noopSession struct {
	finals chan stt.Transcript
}

func (noopSession) SendAudio([]byte) error          { return nil }
func (s noopSession) Finals() <-chan stt.Transcript { return s.finals }
func (noopSession) Close() error                    { return nil }

var _ stt.Provider = noopSTT{}
