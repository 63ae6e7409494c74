package pipeline

import (
	"github.com/sotto-ai/sotto/pkg/audio"
)

// Attributor maps a frame's source channel to a speaker label. Attribution
// is purely channel-based: the remote capture line is always REMOTE, the
// local microphone is always LOCAL, and any frame the VAD classified as
// silence is NOISE regardless of channel.
type Attributor struct {
	channels map[audio.SourceChannel]Speaker
}

// NewAttributor builds an attributor for the two conversation lines.
func NewAttributor(remote, local audio.SourceChannel) *Attributor {
	return &Attributor{
		channels: map[audio.SourceChannel]Speaker{
			remote: SpeakerRemote,
			local:  SpeakerLocal,
		},
	}
}

// Attribute labels a single frame. speech is the VAD verdict for the
// frame. A frame from a channel outside the configured mapping is an
// [audio.UnknownChannelError]; the caller must treat it as fatal rather
// than guess a speaker.
func (a *Attributor) Attribute(f audio.Frame, speech bool) (Speaker, error) {
	sp, ok := a.channels[f.Channel]
	if !ok {
		return SpeakerNoise, &audio.UnknownChannelError{Channel: f.Channel}
	}
	if !speech {
		return SpeakerNoise, nil
	}
	return sp, nil
}
