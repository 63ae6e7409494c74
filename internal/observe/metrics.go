// Package observe provides OpenTelemetry metrics and the Prometheus
// exporter setup for the decision engine.
package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName identifies this module's instrumentation scope.
const meterName = "github.com/sotto-ai/sotto"

// Metrics bundles the engine's instruments. All record methods are safe
// on a nil receiver so components can run unmetered in tests.
type Metrics struct {
	framesProcessed  metric.Int64Counter
	utterancesFinal  metric.Int64Counter
	utteranceChars   metric.Int64Histogram
	gateDecisions    metric.Int64Counter
	cooldownReleases metric.Int64Counter
	answerLatency    metric.Float64Histogram
	answerOutcomes   metric.Int64Counter
}

// NewMetrics registers the engine's instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.framesProcessed, err = meter.Int64Counter("sotto_audio_frames_total",
		metric.WithDescription("Audio frames processed, by source channel and VAD verdict"),
	); err != nil {
		return nil, fmt.Errorf("create frames counter: %w", err)
	}
	if m.utterancesFinal, err = meter.Int64Counter("sotto_utterances_finalized_total",
		metric.WithDescription("Finalized utterances, by speaker"),
	); err != nil {
		return nil, fmt.Errorf("create utterances counter: %w", err)
	}
	if m.utteranceChars, err = meter.Int64Histogram("sotto_utterance_length_chars",
		metric.WithDescription("Finalized utterance length in characters"),
	); err != nil {
		return nil, fmt.Errorf("create utterance length histogram: %w", err)
	}
	if m.gateDecisions, err = meter.Int64Counter("sotto_gate_decisions_total",
		metric.WithDescription("Decision gate outcomes, by outcome and reason"),
	); err != nil {
		return nil, fmt.Errorf("create gate decisions counter: %w", err)
	}
	if m.cooldownReleases, err = meter.Int64Counter("sotto_cooldown_releases_total",
		metric.WithDescription("Cooldown releases, by release reason"),
	); err != nil {
		return nil, fmt.Errorf("create cooldown releases counter: %w", err)
	}
	if m.answerLatency, err = meter.Float64Histogram("sotto_answer_latency_seconds",
		metric.WithDescription("Latency of answer generation requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create answer latency histogram: %w", err)
	}
	if m.answerOutcomes, err = meter.Int64Counter("sotto_answer_requests_total",
		metric.WithDescription("Answer generation requests, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("create answer outcomes counter: %w", err)
	}

	return m, nil
}

// RecordFrame counts one processed audio frame.
func (m *Metrics) RecordFrame(ctx context.Context, channel string, speech bool) {
	if m == nil {
		return
	}
	m.framesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("speech", speech),
	))
}

// RecordUtterance counts one finalized utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, speaker string, chars int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("speaker", speaker))
	m.utterancesFinal.Add(ctx, 1, attrs)
	m.utteranceChars.Record(ctx, int64(chars), attrs)
}

// RecordGateDecision counts one gate outcome.
func (m *Metrics) RecordGateDecision(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	m.gateDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordCooldownRelease counts one cooldown release.
func (m *Metrics) RecordCooldownRelease(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.cooldownReleases.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordAnswer records the outcome and latency of one answer request.
func (m *Metrics) RecordAnswer(ctx context.Context, seconds float64, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.answerOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.answerLatency.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}
