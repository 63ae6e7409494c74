package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
)

// Config tunes the frame-processing pipeline.
type Config struct {
	SampleRate int
	FrameMs    int

	// RemoteChannel and LocalChannel name the two conversation lines.
	RemoteChannel audio.SourceChannel
	LocalChannel  audio.SourceChannel

	// SilenceTimeout closes an utterance after this much trailing silence.
	SilenceTimeout time.Duration

	// TextGrace bounds how long a closed utterance waits for lagging
	// recognition text. Defaults to 1s.
	TextGrace time.Duration

	// MinSpeechFrames discards speech segments shorter than this.
	MinSpeechFrames int

	// VADHysteresis is the consecutive-frame count required to flip the
	// speech/silence state.
	VADHysteresis int

	// VADEnergyThreshold is passed through to energy-based VAD engines.
	// Zero selects the engine default.
	VADEnergyThreshold float64

	// Language is passed to the recognition provider.
	Language string
}

func (c *Config) applyDefaults() {
	if c.TextGrace <= 0 {
		c.TextGrace = time.Second
	}
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameMs <= 0 {
		return fmt.Errorf("frame duration must be positive, got %dms", c.FrameMs)
	}
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("silence timeout must be positive, got %s", c.SilenceTimeout)
	}
	if c.RemoteChannel == "" || c.LocalChannel == "" {
		return fmt.Errorf("both remote and local channels must be named")
	}
	if c.RemoteChannel == c.LocalChannel {
		return fmt.Errorf("remote and local channels must differ, both are %q", c.RemoteChannel)
	}
	return nil
}

// Deps are the pipeline's collaborators.
type Deps struct {
	// Sources are the audio lines to consume, one per configured channel.
	Sources []audio.Source

	// VAD classifies frames as speech or silence. One session is created
	// per source channel so hysteresis state never crosses lines.
	VAD vad.Engine

	// STT recognizes speech. One streaming session per source channel.
	STT stt.Provider

	// Log receives pipeline diagnostics. Defaults to slog.Default().
	Log *slog.Logger

	// Metrics is optional.
	Metrics *observe.Metrics
}

// Pipeline runs the frame path: VAD, attribution, overlap resolution,
// recognition and finalization. Frames from all sources are funneled into
// a single processing goroutine so that per-frame work is serialized and
// deterministic.
type Pipeline struct {
	cfg     Config
	deps    Deps
	attrib  *Attributor
	speaker map[audio.SourceChannel]Speaker
	fin     *Finalizer
}

// New validates the configuration and assembles a pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	if len(deps.Sources) == 0 {
		return nil, fmt.Errorf("pipeline: at least one audio source is required")
	}
	if deps.VAD == nil {
		return nil, fmt.Errorf("pipeline: VAD engine is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("pipeline: STT provider is required")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	fin := NewFinalizer(FinalizerConfig{
		SilenceTimeout:  cfg.SilenceTimeout,
		TextGrace:       cfg.TextGrace,
		MinSpeechFrames: cfg.MinSpeechFrames,
	}, deps.Log)

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		attrib: NewAttributor(cfg.RemoteChannel, cfg.LocalChannel),
		speaker: map[audio.SourceChannel]Speaker{
			cfg.RemoteChannel: SpeakerRemote,
			cfg.LocalChannel:  SpeakerLocal,
		},
		fin: fin,
	}, nil
}

// Events emits finalized transcript events. Closed when Run returns.
func (p *Pipeline) Events() <-chan TranscriptEvent { return p.fin.Events() }

// Run drives the pipeline until ctx is cancelled or a source fails.
// Malformed frames and unknown channels are fatal: the engine prefers
// stopping over processing audio it cannot trust.
func (p *Pipeline) Run(ctx context.Context) error {
	vadSessions := make(map[audio.SourceChannel]vad.SessionHandle)
	sttSessions := make(map[audio.SourceChannel]stt.SessionHandle)
	defer func() {
		for ch, s := range vadSessions {
			if err := s.Close(); err != nil {
				p.deps.Log.Warn("closing VAD session", "channel", ch, "error", err)
			}
		}
		for ch, s := range sttSessions {
			if err := s.Close(); err != nil {
				p.deps.Log.Warn("closing STT session", "channel", ch, "error", err)
			}
		}
	}()

	for _, src := range p.deps.Sources {
		ch := src.Channel()
		vs, err := p.deps.VAD.NewSession(vad.Config{
			SampleRate:       p.cfg.SampleRate,
			FrameMs:          p.cfg.FrameMs,
			EnergyThreshold:  p.cfg.VADEnergyThreshold,
			HysteresisFrames: p.cfg.VADHysteresis,
		})
		if err != nil {
			return fmt.Errorf("create VAD session for %q: %w", ch, err)
		}
		vadSessions[ch] = vs

		ss, err := p.deps.STT.StartStream(ctx, stt.StreamConfig{
			SampleRate: p.cfg.SampleRate,
			Language:   p.cfg.Language,
		})
		if err != nil {
			return fmt.Errorf("start STT stream for %q: %w", ch, err)
		}
		sttSessions[ch] = ss
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p.fin.Run(ctx)
		return nil
	})

	// Fan the sources into one frame channel so processing is serialized.
	frames := make(chan audio.Frame, 64)
	for _, src := range p.deps.Sources {
		src := src
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case f, ok := <-src.Frames():
					if !ok {
						return fmt.Errorf("audio source %q closed", src.Channel())
					}
					select {
					case frames <- f:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	// Recognition finals feed the finalizer tagged with the channel's
	// speaker.
	for ch, ss := range sttSessions {
		sp := p.speaker[ch]
		finals := ss.Finals()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case frag, ok := <-finals:
					if !ok {
						return nil
					}
					p.fin.ObserveFragment(sp, frag)
				}
			}
		})
	}

	g.Go(func() error {
		return p.process(ctx, frames, vadSessions, sttSessions)
	})

	return g.Wait()
}

// process is the single frame-path goroutine.
func (p *Pipeline) process(
	ctx context.Context,
	frames <-chan audio.Frame,
	vadSessions map[audio.SourceChannel]vad.SessionHandle,
	sttSessions map[audio.SourceChannel]stt.SessionHandle,
) error {
	frameDur := time.Duration(p.cfg.FrameMs) * time.Millisecond
	resolver := NewResolver(frameDur)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			vs, ok := vadSessions[f.Channel]
			if !ok {
				return &audio.UnknownChannelError{Channel: f.Channel}
			}

			res, err := vs.ProcessFrame(f.PCM)
			if err != nil {
				return fmt.Errorf("VAD on channel %q: %w", f.Channel, err)
			}

			sp, err := p.attrib.Attribute(f, res.Speech)
			if err != nil {
				return err
			}
			p.deps.Metrics.RecordFrame(ctx, string(f.Channel), res.Speech)

			for _, win := range resolver.Observe(sp, f) {
				if err := p.forward(win, sttSessions); err != nil {
					return err
				}
			}
		}
	}
}

// forward delivers a resolved window's frames to recognition and notifies
// the finalizer. Lower-priority speech in the window was already dropped
// by the resolver.
func (p *Pipeline) forward(win Resolved, sttSessions map[audio.SourceChannel]stt.SessionHandle) error {
	for _, f := range win.Frames {
		ss := sttSessions[f.Channel]
		if err := ss.SendAudio(f.PCM); err != nil {
			return fmt.Errorf("send audio for %q: %w", f.Channel, err)
		}
	}
	p.fin.ObserveSpeech(win.Speaker, len(win.Frames))
	return nil
}
