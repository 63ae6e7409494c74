package pipeline

import (
	"time"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Resolved is the outcome of one overlap window: the winning speaker and
// the speech frames that survive resolution. Frames from lower-priority
// speakers inside the same window are dropped and never reach recognition.
type Resolved struct {
	Speaker Speaker
	Frames  []audio.Frame
	Window  time.Time
}

// Resolver buckets attributed speech frames into fixed windows keyed by
// capture time and resolves each window to its highest-priority speaker.
// Bucketing makes the outcome independent of the order in which the two
// source goroutines happened to deliver their frames.
//
// A window only closes when a frame from a later window arrives, so the
// resolver assumes both sources push frames continuously, silence
// included. When a stream ends, Flush delivers the last open window.
type Resolver struct {
	window  time.Duration
	current time.Time
	started bool
	pending map[Speaker][]audio.Frame
}

// NewResolver creates a resolver with the given window size, normally one
// frame duration.
func NewResolver(window time.Duration) *Resolver {
	return &Resolver{
		window:  window,
		pending: make(map[Speaker][]audio.Frame),
	}
}

// Observe adds one attributed frame and returns any windows that closed
// as a result. NOISE frames advance the window clock but are never
// buffered; silence durations are accounted for by the finalizer's
// timers, not here.
func (r *Resolver) Observe(sp Speaker, f audio.Frame) []Resolved {
	bucket := f.Captured.Truncate(r.window)

	var closed []Resolved
	if r.started && bucket.After(r.current) {
		closed = r.flush()
	}
	if !r.started || bucket.After(r.current) {
		r.current = bucket
		r.started = true
	}

	if sp != SpeakerNoise {
		// Late frames for an already-closed window join the current one;
		// a source that lags more than a window is resynchronized.
		r.pending[sp] = append(r.pending[sp], f)
	}
	return closed
}

// Flush closes the current window, if any.
func (r *Resolver) Flush() []Resolved {
	if !r.started {
		return nil
	}
	return r.flush()
}

func (r *Resolver) flush() []Resolved {
	winner := SpeakerNoise
	for sp := range r.pending {
		if sp.Priority() > winner.Priority() {
			winner = sp
		}
	}
	if winner == SpeakerNoise {
		return nil
	}

	out := Resolved{
		Speaker: winner,
		Frames:  r.pending[winner],
		Window:  r.current,
	}
	r.pending = make(map[Speaker][]audio.Frame)
	return []Resolved{out}
}
