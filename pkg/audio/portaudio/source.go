// Package portaudio implements an [audio.Source] that captures mono PCM
// from a local input device via PortAudio. It is the capture path for the
// near party's microphone line.
package portaudio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Config holds capture parameters for a PortAudio source.
type Config struct {
	// Channel is the source channel stamped on every captured frame.
	Channel audio.SourceChannel

	// SampleRate in Hz. Must match the pipeline sample rate.
	SampleRate int

	// FrameMs is the duration of each captured frame in milliseconds.
	FrameMs int

	// DeviceName selects a specific input device by substring match.
	// Empty selects the default input device.
	DeviceName string
}

// Source captures fixed-duration frames from a PortAudio input stream.
type Source struct {
	cfg    Config
	stream *pa.Stream
	frames chan audio.Frame

	closeOnce sync.Once
	done      chan struct{}
}

// New opens the input device and starts the capture goroutine. The caller
// must call Close to release the device and terminate PortAudio.
func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 || cfg.FrameMs <= 0 {
		return nil, fmt.Errorf("portaudio: sample rate and frame duration must be positive")
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	s := &Source{
		cfg:    cfg,
		frames: make(chan audio.Frame, 64),
		done:   make(chan struct{}),
	}

	frameSamples := cfg.SampleRate * cfg.FrameMs / 1000
	buf := make([]int16, frameSamples)

	stream, err := s.openStream(buf)
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}

	go s.captureLoop(buf)
	return s, nil
}

// openStream opens either the named device or the default input.
func (s *Source) openStream(buf []int16) (*pa.Stream, error) {
	if s.cfg.DeviceName == "" || s.cfg.DeviceName == "default" {
		stream, err := pa.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), len(buf), buf)
		if err != nil {
			return nil, fmt.Errorf("portaudio: open default stream: %w", err)
		}
		return stream, nil
	}

	dev, err := findDevice(s.cfg.DeviceName)
	if err != nil {
		slog.Warn("portaudio: input device not found, falling back to default",
			"device", s.cfg.DeviceName, "err", err)
		stream, derr := pa.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), len(buf), buf)
		if derr != nil {
			return nil, fmt.Errorf("portaudio: open default stream: %w", derr)
		}
		return stream, nil
	}

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: len(buf),
	}
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream for %q: %w", s.cfg.DeviceName, err)
	}
	return stream, nil
}

// captureLoop reads fixed-size buffers from the device and emits frames
// until the source is closed.
func (s *Source) captureLoop(buf []int16) {
	defer close(s.frames)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			select {
			case <-s.done:
				// Expected: Read fails once the stream is stopped.
			default:
				slog.Error("portaudio: read failed, stopping capture",
					"channel", s.cfg.Channel, "err", err)
			}
			return
		}

		pcm := make([]byte, len(buf)*audio.BytesPerSample)
		for i, sample := range buf {
			pcm[i*2] = byte(sample)
			pcm[i*2+1] = byte(sample >> 8)
		}

		frame := audio.Frame{
			PCM:        pcm,
			SampleRate: s.cfg.SampleRate,
			Channel:    s.cfg.Channel,
			Captured:   time.Now(),
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Channel implements [audio.Source].
func (s *Source) Channel() audio.SourceChannel { return s.cfg.Channel }

// Close stops capture, closes the stream, and terminates PortAudio.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.stream != nil {
			_ = s.stream.Stop()
			err = s.stream.Close()
		}
		if terr := pa.Terminate(); err == nil {
			err = terr
		}
	})
	return err
}

// findDevice locates an input device whose name contains name
// (case-sensitive substring, matching PortAudio's reported names).
func findDevice(name string) (*pa.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q", name)
}
