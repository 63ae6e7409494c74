// Package stt defines the Provider interface for the streaming
// transcription collaborator.
//
// The core owns segmentation and timing of utterances; it treats the
// transcription backend as an opaque producer of text for the attributed
// speech it forwards. Once opened, a session accepts raw PCM audio and
// emits committed Transcript values. Interim guesses are deliberately not
// part of the contract: the decision pipeline must never reason on
// un-finalized text, so only authoritative finals are surfaced.
//
// Implementations must be safe for concurrent use; the audio input and
// transcript output paths are goroutine-safe by construction.
package stt

import "context"

// Transcript is one committed recognition result for a span of audio.
type Transcript struct {
	// Text is the recognised text. Never empty for an emitted transcript.
	Text string

	// Confidence is the backend's recognition confidence in [0, 1].
	Confidence float64
}

// StreamConfig describes the audio format for a new session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (typically 16000).
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// Empty lets the backend auto-detect, if supported.
	Language string
}

// SessionHandle is an open streaming transcription session. Callers must
// call Close when the session is no longer needed; failing to do so may
// leak goroutines and connections inside the implementation.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw little-endian PCM matching the
	// session's StreamConfig. Calling SendAudio after Close returns an
	// error. SendAudio must not block the caller beyond brief buffering.
	SendAudio(chunk []byte) error

	// Finals returns the channel of committed transcripts. The channel is
	// closed when the session ends.
	Finals() <-chan Transcript

	// Close flushes pending audio, terminates the session, and closes the
	// Finals channel. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming transcription backend.
// Multiple sessions may be open simultaneously (one per capture line).
type Provider interface {
	// StartStream opens a new session with the given audio format. The
	// returned handle is ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
