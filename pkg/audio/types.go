// Package audio defines the frame types and capture-source contract for the
// sotto listening pipeline. Frames are the atomic unit of audio transport:
// captured from an input line, classified by VAD, attributed to a speaker,
// and buffered until utterance finalization.
package audio

import (
	"fmt"
	"time"
)

// SourceChannel identifies the physical or logical line a frame was captured
// from. Channel identity is authoritative for speaker attribution: the
// capture contract guarantees that the remote line only carries the far
// party and the local line only carries the near party.
type SourceChannel string

// BytesPerSample is the sample width of pipeline PCM (16-bit little-endian).
const BytesPerSample = 2

// Frame is a single fixed-duration chunk of mono PCM flowing through the
// pipeline. Frames are immutable once produced and are not retained beyond
// the utterance buffering window.
type Frame struct {
	// PCM is raw 16-bit little-endian mono audio data.
	PCM []byte

	// SampleRate in Hz (e.g., 16000 for the STT-optimised pipeline format).
	SampleRate int

	// Channel is the capture line this frame arrived on.
	Channel SourceChannel

	// Captured is the monotonic capture timestamp.
	Captured time.Time
}

// Duration returns the play time represented by the frame's PCM payload.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.PCM) / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// FrameBytes returns the expected PCM payload size for a frame of frameMs
// milliseconds at sampleRate Hz.
func FrameBytes(sampleRate, frameMs int) int {
	return sampleRate * frameMs / 1000 * BytesPerSample
}

// MalformedFrameError reports a frame whose payload does not match the
// pipeline's configured frame size. Such frames are rejected at the
// ingestion boundary and never propagate further down the pipeline.
type MalformedFrameError struct {
	// Got is the actual payload size in bytes.
	Got int

	// Want is the expected payload size in bytes.
	Want int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("audio: malformed frame: got %d bytes, want %d", e.Got, e.Want)
}

// UnknownChannelError reports a frame carrying a source channel that is not
// mapped to any speaker in the pipeline configuration.
type UnknownChannelError struct {
	Channel SourceChannel
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("audio: unknown source channel %q", e.Channel)
}
