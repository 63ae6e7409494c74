package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// [Validate] warns about unrecognised names rather than failing, so a
// newer binary can still load an older config and vice versa.
var ValidProviderNames = map[string][]string{
	"vad": {"energy", "webrtc"},
	"stt": {"deepgram"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path, applies defaults and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown YAML fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns
// a joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d must be positive", cfg.Audio.FrameMs))
	}
	if cfg.Audio.RemoteChannel == cfg.Audio.LocalChannel {
		errs = append(errs, fmt.Errorf("audio.remote_channel and audio.local_channel must differ, both are %q", cfg.Audio.RemoteChannel))
	}

	if cfg.Pipeline.SilenceTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_timeout_ms %d must be positive", cfg.Pipeline.SilenceTimeoutMs))
	}
	if cfg.Pipeline.CooldownTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.cooldown_timeout_ms %d must be positive", cfg.Pipeline.CooldownTimeoutMs))
	}
	if cfg.Pipeline.VADHysteresisFrames < 1 {
		errs = append(errs, fmt.Errorf("pipeline.vad_hysteresis_frames %d must be at least 1", cfg.Pipeline.VADHysteresisFrames))
	}
	if cfg.Pipeline.MinSpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_speech_frames %d must not be negative", cfg.Pipeline.MinSpeechFrames))
	}

	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; utterances will finalize without text and be discarded")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; allowed questions will not produce answers")
	}

	return errors.Join(errs...)
}

// validateProviderName warns about provider names outside
// [ValidProviderNames]. An empty name disables the stage and is not
// warned about.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name)
	}
}
