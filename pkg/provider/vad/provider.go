// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine classifies fixed-duration PCM frames as speech or silence
// and surfaces the detector as a stateful, per-stream session: each capture
// line gets its own session so smoothing state never bleeds between the
// remote and local channels.
//
// VAD is synchronous by design. ProcessFrame returns immediately with a
// result, making it suitable for the frame-processing path, which must
// never block on I/O.
//
// Implementations must be safe for concurrent use across different
// sessions. A single SessionHandle must not be shared across goroutines.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of
	// the PCM frames passed to ProcessFrame.
	SampleRate int

	// FrameMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if the supplied frame does not match.
	FrameMs int

	// EnergyThreshold is the RMS amplitude above which a frame counts as
	// speech, in int16 sample units. Ignored by engines that do not use
	// energy detection. Zero selects the engine default.
	EnergyThreshold float64

	// HysteresisFrames is the number of consecutive agreeing frames
	// required before the reported speech/silence state flips. This
	// rejects single-frame spikes. Zero selects the engine default.
	HysteresisFrames int
}

// Result is the classification of a single frame after hysteresis.
type Result struct {
	// Speech reports whether the session considers the stream to be in
	// speech after processing this frame.
	Speech bool

	// Score is the engine's raw per-frame measure (RMS energy for the
	// energy engine, 0 or 1 for binary detectors). Diagnostic only.
	Score float64
}

// SessionHandle is an active VAD session for a single audio stream. Reset
// clears accumulated smoothing state without closing the session.
type SessionHandle interface {
	// ProcessFrame classifies one frame of raw little-endian PCM. Returns
	// an error if the frame size is malformed or the engine fails; a
	// malformed frame is never silently dropped or padded.
	ProcessFrame(frame []byte) (Result, error)

	// Reset clears hysteresis state. Use when the stream restarts.
	Reset()

	// Close releases session resources. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously.
type Engine interface {
	// NewSession creates a session with the given configuration. Returns
	// an error if the configuration is unsupported.
	NewSession(cfg Config) (SessionHandle, error)
}
