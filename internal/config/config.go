// Package config provides the configuration schema and loader for the
// sotto decision engine.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a
// YAML file via [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
	Profile   ProfileConfig   `yaml:"profile"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the presentation server listens on
	// (e.g., ":8775").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the two capture lines and the frame format.
type AudioConfig struct {
	// SampleRate in Hz for both lines. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the frame duration in milliseconds. Default: 30.
	FrameMs int `yaml:"frame_ms"`

	// RemoteChannel names the far party's line. Default: "remote_line".
	RemoteChannel string `yaml:"remote_channel"`

	// LocalChannel names the near party's line. Default: "local_mic".
	LocalChannel string `yaml:"local_channel"`

	// RemoteURL is the WebSocket URL delivering the remote line's PCM.
	RemoteURL string `yaml:"remote_url"`

	// LocalDevice selects the capture device for the local line by
	// substring match. Empty selects the system default input.
	LocalDevice string `yaml:"local_device"`
}

// PipelineConfig tunes finalization and gating.
type PipelineConfig struct {
	// SilenceTimeoutMs is the trailing silence that finalizes an
	// utterance. Default: 200.
	SilenceTimeoutMs int `yaml:"silence_timeout_ms"`

	// CooldownTimeoutMs releases the gate's suppression window when no
	// earlier release occurs. Default: 2000.
	CooldownTimeoutMs int `yaml:"cooldown_timeout_ms"`

	// VADHysteresisFrames is the consecutive-frame count required to
	// flip the speech/silence state. Default: 3.
	VADHysteresisFrames int `yaml:"vad_hysteresis_frames"`

	// MinSpeechFrames discards speech segments shorter than this.
	// Default: 10.
	MinSpeechFrames int `yaml:"min_speech_frames"`

	// TextGraceMs bounds how long a finalized utterance waits for
	// lagging recognition text. Default: 1000.
	TextGraceMs int `yaml:"text_grace_ms"`

	// HistorySize caps the in-memory transcript history. Default: 200.
	HistorySize int `yaml:"history_size"`

	// HistoryMaxAgeMin caps transcript history age in minutes.
	// Default: 60.
	HistoryMaxAgeMin int `yaml:"history_max_age_min"`
}

// SilenceTimeout returns the silence timeout as a duration.
func (p PipelineConfig) SilenceTimeout() time.Duration {
	return time.Duration(p.SilenceTimeoutMs) * time.Millisecond
}

// CooldownTimeout returns the cooldown timeout as a duration.
func (p PipelineConfig) CooldownTimeout() time.Duration {
	return time.Duration(p.CooldownTimeoutMs) * time.Millisecond
}

// TextGrace returns the recognition grace window as a duration.
func (p PipelineConfig) TextGrace() time.Duration {
	return time.Duration(p.TextGraceMs) * time.Millisecond
}

// ProvidersConfig declares which implementation serves each pipeline
// stage.
type ProvidersConfig struct {
	VAD ProviderEntry `yaml:"vad"`
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the implementation (e.g., "energy", "deepgram",
	// "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above, such as
	// the energy VAD threshold.
	Options map[string]any `yaml:"options"`
}

// ProfileConfig is the candidate preference profile.
type ProfileConfig struct {
	// PreferredLanguage is used for coding answers when the question
	// does not name one. Default: Python.
	PreferredLanguage string `yaml:"preferred_language"`

	// Skills lists technologies; they seed the transcript vocabulary
	// and the answer prompt.
	Skills []string `yaml:"skills"`

	// Resume is free-form background text for answer prompts.
	Resume string `yaml:"resume"`
}

// StoreConfig selects session persistence.
type StoreConfig struct {
	// PostgresDSN enables the PostgreSQL store. Empty keeps the session
	// record in memory only.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SessionID labels this run's records. Empty generates one.
	SessionID string `yaml:"session_id"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8775"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameMs == 0 {
		c.Audio.FrameMs = 30
	}
	if c.Audio.RemoteChannel == "" {
		c.Audio.RemoteChannel = "remote_line"
	}
	if c.Audio.LocalChannel == "" {
		c.Audio.LocalChannel = "local_mic"
	}
	if c.Pipeline.SilenceTimeoutMs == 0 {
		c.Pipeline.SilenceTimeoutMs = 200
	}
	if c.Pipeline.CooldownTimeoutMs == 0 {
		c.Pipeline.CooldownTimeoutMs = 2000
	}
	if c.Pipeline.VADHysteresisFrames == 0 {
		c.Pipeline.VADHysteresisFrames = 3
	}
	if c.Pipeline.MinSpeechFrames == 0 {
		c.Pipeline.MinSpeechFrames = 10
	}
	if c.Pipeline.TextGraceMs == 0 {
		c.Pipeline.TextGraceMs = 1000
	}
	if c.Pipeline.HistorySize == 0 {
		c.Pipeline.HistorySize = 200
	}
	if c.Pipeline.HistoryMaxAgeMin == 0 {
		c.Pipeline.HistoryMaxAgeMin = 60
	}
	if c.Providers.VAD.Name == "" {
		c.Providers.VAD.Name = "energy"
	}
	if c.Profile.PreferredLanguage == "" {
		c.Profile.PreferredLanguage = "Python"
	}
}
