// Package wsline implements an [audio.Source] that receives the remote
// party's audio line over a WebSocket connection. A meeting bridge (or any
// other capture process) streams binary messages, each carrying exactly one
// frame of 16-bit little-endian mono PCM at the agreed sample rate.
package wsline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Config holds connection parameters for a WebSocket line source.
type Config struct {
	// URL is the WebSocket endpoint of the audio bridge
	// (e.g., "ws://127.0.0.1:9877/line").
	URL string

	// Channel is the source channel stamped on every received frame.
	Channel audio.SourceChannel

	// SampleRate in Hz of the PCM carried by the bridge.
	SampleRate int

	// FrameMs is the expected frame duration. Messages whose payload does
	// not match this size are rejected with [audio.MalformedFrameError]
	// and terminate the stream.
	FrameMs int
}

// Source receives frames from a remote audio bridge. It implements
// [audio.Source].
type Source struct {
	cfg    Config
	conn   *websocket.Conn
	frames chan audio.Frame

	closeOnce sync.Once
	done      chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// Dial connects to the bridge at cfg.URL and starts the receive loop.
func Dial(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("wsline: URL must not be empty")
	}
	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("wsline: dial %q: %w", cfg.URL, err)
	}

	s := &Source{
		cfg:    cfg,
		conn:   conn,
		frames: make(chan audio.Frame, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx)
	return s, nil
}

// readLoop receives binary messages and emits them as frames until the
// connection drops or the source is closed.
func (s *Source) readLoop(ctx context.Context) {
	defer close(s.frames)

	want := audio.FrameBytes(s.cfg.SampleRate, s.cfg.FrameMs)

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
			default:
				slog.Error("wsline: read failed, stopping line",
					"channel", s.cfg.Channel, "err", err)
				s.setErr(fmt.Errorf("wsline: read: %w", err))
			}
			return
		}
		if typ != websocket.MessageBinary {
			// Text messages are bridge keepalives; ignore.
			continue
		}
		if len(data) != want {
			// Fail fast: a misconfigured bridge must not feed the pipeline.
			err := &audio.MalformedFrameError{Got: len(data), Want: want}
			slog.Error("wsline: rejecting malformed frame", "channel", s.cfg.Channel, "err", err)
			s.setErr(err)
			return
		}

		frame := audio.Frame{
			PCM:        data,
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

func (s *Source) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.lastErr == nil {
		s.lastErr = err
	}
}

// Err returns the error that terminated the stream, if any. Valid after the
// Frames channel is closed.
func (s *Source) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Channel implements [audio.Source].
func (s *Source) Channel() audio.SourceChannel { return s.cfg.Channel }

// Close terminates the connection and stops the receive loop.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close(websocket.StatusNormalClosure, "line closed")
	})
	return nil
}
