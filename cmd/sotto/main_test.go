package main

import (
	"context"
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Audio.RemoteURL = "ws://127.0.0.1:1/audio"
	return cfg
}

func TestBuildProvidersValidatesBeforeDialing(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.VAD.Name = "sonic"

	// A cancelled context would make any dial attempt fail immediately,
	// so the error below can only be the provider misconfiguration.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := buildProviders(ctx, cfg)
	if err == nil {
		t.Fatal("expected an error for the unknown vad provider")
	}
	if !strings.Contains(err.Error(), "unknown vad provider") {
		t.Errorf("error = %v, want the vad misconfiguration, not a dial failure", err)
	}
}

func TestBuildVAD(t *testing.T) {
	if _, err := buildVAD(config.ProviderEntry{Name: "energy"}); err != nil {
		t.Errorf("energy: %v", err)
	}
	if _, err := buildVAD(config.ProviderEntry{}); err != nil {
		t.Errorf("default: %v", err)
	}
	if _, err := buildVAD(config.ProviderEntry{
		Name:    "webrtc",
		Options: map[string]any{"mode": 3},
	}); err != nil {
		t.Errorf("webrtc: %v", err)
	}
	if _, err := buildVAD(config.ProviderEntry{Name: "sonic"}); err == nil {
		t.Error("unknown vad name accepted")
	}
}

func TestBuildSTT(t *testing.T) {
	if _, err := buildSTT(config.ProviderEntry{Name: "deepgram", APIKey: "dg-key"}); err != nil {
		t.Errorf("deepgram: %v", err)
	}
	if _, err := buildSTT(config.ProviderEntry{Name: "deepgram"}); err == nil {
		t.Error("deepgram accepted an empty api key")
	}
	if _, err := buildSTT(config.ProviderEntry{Name: "whisperx"}); err == nil {
		t.Error("unknown stt name accepted")
	}
}

func TestBuildLLM(t *testing.T) {
	if _, err := buildLLM(config.ProviderEntry{
		Name: "openai", APIKey: "sk-test", Model: "gpt-4o",
	}); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := buildLLM(config.ProviderEntry{Name: "openai", Model: "gpt-4o"}); err == nil {
		t.Error("openai accepted an empty api key")
	}
	if _, err := buildLLM(config.ProviderEntry{
		Name: "ollama", Model: "llama3", BaseURL: "http://127.0.0.1:11434",
	}); err != nil {
		t.Errorf("ollama: %v", err)
	}
	if _, err := buildLLM(config.ProviderEntry{Name: "groq"}); err == nil {
		t.Error("llm entry without a model accepted")
	}
}

func TestOptionHelpers(t *testing.T) {
	opts := map[string]any{"mode": 2, "ratio": float64(3), "language": "en-US"}

	if got := optInt(opts, "mode"); got != 2 {
		t.Errorf("optInt(mode) = %d", got)
	}
	// YAML numbers may decode as float64 depending on the document.
	if got := optInt(opts, "ratio"); got != 3 {
		t.Errorf("optInt(ratio) = %d", got)
	}
	if got := optInt(opts, "missing"); got != 0 {
		t.Errorf("optInt(missing) = %d", got)
	}
	if got := optString(opts, "language"); got != "en-US" {
		t.Errorf("optString(language) = %q", got)
	}
	if got := optString(opts, "mode"); got != "" {
		t.Errorf("optString on a non-string = %q", got)
	}
}
