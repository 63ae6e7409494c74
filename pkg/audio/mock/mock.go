// Package mock provides a scripted audio source for tests.
package mock

import (
	"sync"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Source is a test double implementing [audio.Source]. Frames pushed via
// Push are delivered on the Frames channel in order.
type Source struct {
	ChannelResult audio.SourceChannel

	frames chan audio.Frame
	once   sync.Once
}

// NewSource creates a mock source for the given channel with the given
// buffer capacity.
func NewSource(ch audio.SourceChannel, capacity int) *Source {
	return &Source{
		ChannelResult: ch,
		frames:        make(chan audio.Frame, capacity),
	}
}

// Push delivers a frame to consumers. The frame's Channel is overwritten
// with the source's channel so tests cannot accidentally mislabel frames.
func (s *Source) Push(f audio.Frame) {
	f.Channel = s.ChannelResult
	s.frames <- f
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Channel implements [audio.Source].
func (s *Source) Channel() audio.SourceChannel { return s.ChannelResult }

// Close implements [audio.Source]. It closes the frame channel; pending
// frames remain readable.
func (s *Source) Close() error {
	s.once.Do(func() { close(s.frames) })
	return nil
}
