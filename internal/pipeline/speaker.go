// Package pipeline turns the continuous audio streams of a two-party
// conversation into discrete, attributed, finalized transcript events.
//
// Processing stages per frame: VAD classification, speaker attribution by
// source channel, overlap resolution by speaker priority, and utterance
// finalization on trailing silence. The stages run synchronously on one
// processing goroutine — the frame path never blocks on I/O, since a
// stalled pipeline would corrupt the silence-timing invariant.
package pipeline

import (
	"fmt"
	"time"
)

// Speaker labels the origin of a speech frame or transcript event. The
// numeric value is the overlap-resolution priority: higher wins.
type Speaker int

const (
	// SpeakerNoise marks silence or unattributable audio.
	SpeakerNoise Speaker = iota

	// SpeakerLocal is the near party (this machine's user).
	SpeakerLocal

	// SpeakerRemote is the far party — the only speaker whose questions
	// may trigger answers.
	SpeakerRemote
)

// Priority returns the overlap-resolution rank: REMOTE > LOCAL > NOISE.
func (s Speaker) Priority() int { return int(s) }

func (s Speaker) String() string {
	switch s {
	case SpeakerRemote:
		return "REMOTE"
	case SpeakerLocal:
		return "LOCAL"
	case SpeakerNoise:
		return "NOISE"
	}
	return fmt.Sprintf("Speaker(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so events serialize with
// symbolic speaker names.
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TranscriptEvent is a finalized utterance — the only structure the
// decision gate is permitted to reason on. An event is emitted only after
// the configured trailing silence has been observed, and is immutable once
// emitted.
type TranscriptEvent struct {
	// Speaker is the attributed origin of the utterance.
	Speaker Speaker `json:"speaker"`

	// Text is the full recognised text of the utterance.
	Text string `json:"text"`

	// Confidence is the mean recognition confidence across the
	// utterance's fragments, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Timestamp is when the utterance was finalized.
	Timestamp time.Time `json:"timestamp"`
}

// RemoteUtterance is a proof-carrying view of a TranscriptEvent whose
// speaker is REMOTE. The intent classifier only accepts this type, so
// classifying LOCAL or NOISE events is unrepresentable rather than merely
// checked at runtime.
type RemoteUtterance struct {
	text string
}

// Remote returns the remote-utterance view of e, or false when e was not
// spoken by the remote party.
func (e TranscriptEvent) Remote() (RemoteUtterance, bool) {
	if e.Speaker != SpeakerRemote {
		return RemoteUtterance{}, false
	}
	return RemoteUtterance{text: e.Text}, true
}

// Text returns the utterance text.
func (u RemoteUtterance) Text() string { return u.text }
