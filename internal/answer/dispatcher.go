package answer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/pkg/provider/llm"
)

// Answer is a completed generation for one plan.
type Answer struct {
	Plan    Plan          `json:"plan"`
	Content string        `json:"content"`
	Elapsed time.Duration `json:"elapsed"`
}

// Dispatcher issues answer-generation requests fire-and-forget: Dispatch
// returns immediately, generation runs on its own goroutine, and a
// provider failure is logged and dropped. The gate's correctness never
// depends on the collaborator, so nothing here feeds back into it.
type Dispatcher struct {
	provider llm.Provider
	log      *slog.Logger
	metrics  *observe.Metrics
	timeout  time.Duration

	results chan Answer
	wg      sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds a single generation request. Default: 60s.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(dp *Dispatcher) { dp.log = log }
}

// WithMetrics attaches metrics.
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(dp *Dispatcher) { dp.metrics = m }
}

// NewDispatcher creates a dispatcher over the given provider.
func NewDispatcher(provider llm.Provider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		log:      slog.Default(),
		timeout:  60 * time.Second,
		results:  make(chan Answer, 16),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Results emits completed answers. Failed generations never appear here.
func (d *Dispatcher) Results() <-chan Answer { return d.results }

// Dispatch starts generation for plan and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, plan Plan) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.generate(ctx, plan)
	}()
}

// Wait blocks until all in-flight generations finish. Intended for
// shutdown and tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) generate(ctx context.Context, plan Plan) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	stream, err := d.provider.StreamCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: plan.SystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: plan.UserPrompt},
		},
	})
	if err != nil {
		d.log.Error("answer generation failed to start",
			"plan_id", plan.ID, "error", err)
		d.metrics.RecordAnswer(ctx, time.Since(start).Seconds(), false)
		return
	}

	var b strings.Builder
	for chunk := range stream {
		if chunk.FinishReason == "error" {
			d.log.Error("answer generation failed mid-stream",
				"plan_id", plan.ID, "error", chunk.Text)
			d.metrics.RecordAnswer(ctx, time.Since(start).Seconds(), false)
			return
		}
		b.WriteString(chunk.Text)
	}

	elapsed := time.Since(start)
	if ctx.Err() != nil {
		d.log.Error("answer generation cancelled",
			"plan_id", plan.ID, "error", ctx.Err())
		d.metrics.RecordAnswer(ctx, elapsed.Seconds(), false)
		return
	}

	d.metrics.RecordAnswer(context.WithoutCancel(ctx), elapsed.Seconds(), true)
	d.log.Info("answer generated",
		"plan_id", plan.ID, "elapsed", elapsed, "chars", b.Len())

	select {
	case d.results <- Answer{Plan: plan, Content: b.String(), Elapsed: elapsed}:
	default:
		d.log.Warn("answer dropped, results consumer is not keeping up",
			"plan_id", plan.ID)
	}
}
