package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// FinalizerConfig tunes utterance finalization.
type FinalizerConfig struct {
	// SilenceTimeout is the trailing silence that closes an utterance.
	SilenceTimeout time.Duration

	// TextGrace is how long a closed utterance waits for recognition
	// text that has not arrived yet. Recognition finals lag the audio
	// slightly, so the silence boundary usually fires first.
	TextGrace time.Duration

	// MinSpeechFrames discards utterances shorter than this many speech
	// frames; brief noise bursts otherwise produce empty events.
	MinSpeechFrames int
}

type utterPhase int

const (
	phaseIdle utterPhase = iota
	phaseAccumulating
	phaseAwaitingText
)

// speakerState tracks one speaker's in-flight utterance. gen invalidates
// timer callbacks scheduled for a superseded phase: a speech frame that
// arrives before a pending silence timer fires must win.
type speakerState struct {
	phase     utterPhase
	frames    int
	fragments []stt.Transcript
	gen       uint64
}

type speechMsg struct {
	sp     Speaker
	frames int
}

type fragmentMsg struct {
	sp   Speaker
	frag stt.Transcript
}

type timerMsg struct {
	sp    Speaker
	gen   uint64
	grace bool
}

// Finalizer owns the per-speaker utterance state machines. All state
// mutation happens on the Run goroutine; speech observations, recognition
// fragments and timer callbacks are serialized through one channel, so a
// timer fire and a frame arrival can never race.
type Finalizer struct {
	cfg FinalizerConfig
	log *slog.Logger

	in     chan any
	events chan TranscriptEvent
	done   chan struct{}

	states map[Speaker]*speakerState
}

// NewFinalizer creates a finalizer. Run must be called before any
// observations are delivered.
func NewFinalizer(cfg FinalizerConfig, log *slog.Logger) *Finalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Finalizer{
		cfg:    cfg,
		log:    log,
		in:     make(chan any, 64),
		events: make(chan TranscriptEvent, 16),
		done:   make(chan struct{}),
		states: map[Speaker]*speakerState{
			SpeakerRemote: {},
			SpeakerLocal:  {},
		},
	}
}

// Events emits finalized utterances. The channel is closed when Run
// returns.
func (f *Finalizer) Events() <-chan TranscriptEvent { return f.events }

// ObserveSpeech records that n speech frames for sp survived overlap
// resolution. Resets the speaker's silence countdown.
func (f *Finalizer) ObserveSpeech(sp Speaker, n int) {
	f.post(speechMsg{sp: sp, frames: n})
}

// ObserveFragment delivers a recognition final for sp's current utterance.
func (f *Finalizer) ObserveFragment(sp Speaker, frag stt.Transcript) {
	f.post(fragmentMsg{sp: sp, frag: frag})
}

func (f *Finalizer) post(msg any) {
	select {
	case f.in <- msg:
	case <-f.done:
	}
}

// Run processes observations until ctx is cancelled.
func (f *Finalizer) Run(ctx context.Context) {
	defer close(f.events)
	defer close(f.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.in:
			switch m := msg.(type) {
			case speechMsg:
				f.onSpeech(m)
			case fragmentMsg:
				f.onFragment(ctx, m)
			case timerMsg:
				f.onTimer(ctx, m)
			}
		}
	}
}

func (f *Finalizer) onSpeech(m speechMsg) {
	st, ok := f.states[m.sp]
	if !ok {
		return
	}

	switch st.phase {
	case phaseIdle:
		st.phase = phaseAccumulating
		st.frames = 0
		st.fragments = nil
	case phaseAwaitingText:
		// Speech resumed before the previous utterance's text arrived;
		// merge into a single utterance rather than emit a fragment pair.
		st.phase = phaseAccumulating
	}

	st.frames += m.frames
	f.armTimer(m.sp, st, f.cfg.SilenceTimeout, false)
}

func (f *Finalizer) onFragment(ctx context.Context, m fragmentMsg) {
	st, ok := f.states[m.sp]
	if !ok {
		return
	}

	switch st.phase {
	case phaseIdle:
		// Recognition text with no tracked utterance: the segment was
		// discarded as too short, or the final outlived the grace window.
		f.log.Debug("dropping orphan transcript fragment",
			"speaker", m.sp, "text", m.frag.Text)
	case phaseAccumulating:
		st.fragments = append(st.fragments, m.frag)
	case phaseAwaitingText:
		st.fragments = append(st.fragments, m.frag)
		f.emit(ctx, m.sp, st)
	}
}

func (f *Finalizer) onTimer(ctx context.Context, m timerMsg) {
	st, ok := f.states[m.sp]
	if !ok || m.gen != st.gen {
		// Superseded: speech or a later timer re-armed the countdown
		// after this callback was scheduled.
		return
	}

	switch {
	case st.phase == phaseAccumulating && !m.grace:
		if st.frames < f.cfg.MinSpeechFrames {
			f.log.Debug("discarding short speech segment",
				"speaker", m.sp, "frames", st.frames)
			f.reset(st)
			return
		}
		if len(st.fragments) > 0 {
			f.emit(ctx, m.sp, st)
			return
		}
		st.phase = phaseAwaitingText
		f.armTimer(m.sp, st, f.cfg.TextGrace, true)
	case st.phase == phaseAwaitingText && m.grace:
		f.log.Debug("no transcript text arrived for utterance",
			"speaker", m.sp, "frames", st.frames)
		f.reset(st)
	}
}

func (f *Finalizer) armTimer(sp Speaker, st *speakerState, d time.Duration, grace bool) {
	st.gen++
	gen := st.gen
	time.AfterFunc(d, func() {
		f.post(timerMsg{sp: sp, gen: gen, grace: grace})
	})
}

func (f *Finalizer) emit(ctx context.Context, sp Speaker, st *speakerState) {
	texts := make([]string, 0, len(st.fragments))
	var conf float64
	for _, frag := range st.fragments {
		texts = append(texts, strings.TrimSpace(frag.Text))
		conf += frag.Confidence
	}
	conf /= float64(len(st.fragments))

	ev := TranscriptEvent{
		Speaker:    sp,
		Text:       strings.Join(texts, " "),
		Confidence: conf,
		Timestamp:  time.Now(),
	}
	f.reset(st)

	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}

func (f *Finalizer) reset(st *speakerState) {
	st.phase = phaseIdle
	st.frames = 0
	st.fragments = nil
	st.gen++
}
