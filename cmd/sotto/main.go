// Command sotto runs the speaker-gated transcript decision engine: it
// listens to the two conversation lines, finalizes utterances, gates
// remote questions and dispatches answer generation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sotto-ai/sotto/internal/app"
	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/pkg/audio"
	paudio "github.com/sotto-ai/sotto/pkg/audio/portaudio"
	"github.com/sotto-ai/sotto/pkg/audio/wsline"
	"github.com/sotto-ai/sotto/pkg/provider/llm"
	"github.com/sotto-ai/sotto/pkg/provider/llm/anyllm"
	oaillm "github.com/sotto-ai/sotto/pkg/provider/llm/openai"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	"github.com/sotto-ai/sotto/pkg/provider/stt/deepgram"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
	energyvad "github.com/sotto-ai/sotto/pkg/provider/vad/energy"
	webrtcvad "github.com/sotto-ai/sotto/pkg/provider/vad/webrtc"
)

// version is overridden at build time via -ldflags "-X main.version=…".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sotto: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sotto: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sotto starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("engine ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProviders instantiates the VAD, STT and LLM providers named in
// cfg, then opens the two audio lines. Providers come first so a
// misconfiguration surfaces before any line is dialed; once the lines
// are open, no later step can fail and leak them.
func buildProviders(ctx context.Context, cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}
	var err error

	// ── VAD ───────────────────────────────────────────────────────────────
	ps.VAD, err = buildVAD(cfg.Providers.VAD)
	if err != nil {
		return nil, err
	}
	slog.Info("provider created", "kind", "vad", "name", cfg.Providers.VAD.Name)

	// ── STT ───────────────────────────────────────────────────────────────
	if name := cfg.Providers.STT.Name; name != "" {
		ps.STT, err = buildSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	// ── LLM ───────────────────────────────────────────────────────────────
	if name := cfg.Providers.LLM.Name; name != "" {
		ps.LLM, err = buildLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	// ── Audio lines ───────────────────────────────────────────────────────
	if cfg.Audio.RemoteURL == "" {
		return nil, fmt.Errorf("audio.remote_url is required: the engine cannot run without the remote line")
	}
	remote, err := wsline.Dial(ctx, wsline.Config{
		URL:        cfg.Audio.RemoteURL,
		Channel:    audio.SourceChannel(cfg.Audio.RemoteChannel),
		SampleRate: cfg.Audio.SampleRate,
		FrameMs:    cfg.Audio.FrameMs,
	})
	if err != nil {
		return nil, fmt.Errorf("connect remote line: %w", err)
	}
	slog.Info("remote line connected", "url", cfg.Audio.RemoteURL)

	local, err := paudio.New(paudio.Config{
		Channel:    audio.SourceChannel(cfg.Audio.LocalChannel),
		SampleRate: cfg.Audio.SampleRate,
		FrameMs:    cfg.Audio.FrameMs,
		DeviceName: cfg.Audio.LocalDevice,
	})
	if err != nil {
		_ = remote.Close()
		return nil, fmt.Errorf("open local microphone: %w", err)
	}
	slog.Info("local line opened", "device", cfg.Audio.LocalDevice)

	ps.Sources = []audio.Source{remote, local}

	return ps, nil
}

func buildVAD(entry config.ProviderEntry) (vad.Engine, error) {
	switch entry.Name {
	case "energy", "":
		return energyvad.New(), nil
	case "webrtc":
		var opts []webrtcvad.Option
		if mode := optInt(entry.Options, "mode"); mode > 0 {
			opts = append(opts, webrtcvad.WithMode(mode))
		}
		return webrtcvad.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown vad provider %q", entry.Name)
	}
}

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "deepgram":
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		// Local server; BaseURL is the address, no API key.
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
