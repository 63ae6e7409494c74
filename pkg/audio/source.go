package audio

// Source supplies a stream of capture frames from one input line. The core
// makes no assumption about how frames are obtained — device capture,
// network transport, or file playback all satisfy the same contract.
//
// Implementations own the capture goroutine and must close the Frames
// channel when the stream ends or Close is called.
type Source interface {
	// Frames returns the channel on which captured frames are delivered.
	// The channel is closed when the source stops.
	Frames() <-chan Frame

	// Channel reports the source channel identifier stamped on every frame
	// this source produces.
	Channel() SourceChannel

	// Close stops capture and releases resources. Calling Close more than
	// once is safe and returns nil.
	Close() error
}
