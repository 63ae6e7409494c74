package gate

import "time"

// ReleaseReason records which of the three release conditions cleared a
// cooldown.
type ReleaseReason string

const (
	ReleaseNone          ReleaseReason = "NONE"
	ReleaseRemoteSpeech  ReleaseReason = "REMOTE_SPEECH"
	ReleaseContextChange ReleaseReason = "CONTEXT_CHANGE"
	ReleaseTimeout       ReleaseReason = "TIMEOUT"
)

// CooldownState is the gate's temporal suppression window. It is created
// inactive, set active the instant the gate emits an ALLOW, and cleared by
// exactly one release condition. Only the gate mutates it (single-writer);
// everything else sees copies.
type CooldownState struct {
	// Active reports whether the suppression window is in force.
	Active bool

	// ActivatedAt is when the window opened. Zero while inactive and
	// never cleared on release, so the last window remains inspectable.
	ActivatedAt time.Time

	// ReleaseReason is the condition that cleared the last window,
	// ReleaseNone while active or before the first ALLOW.
	ReleaseReason ReleaseReason
}
