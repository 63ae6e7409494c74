// Package present is the engine's outward surface: it pushes transcript
// events, gate decisions and answers to WebSocket subscribers for live
// display, accepts the context-change signal, and serves the metrics and
// health endpoints. It renders nothing itself.
package present

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sotto-ai/sotto/internal/health"
)

// Envelope wraps every message pushed to subscribers.
type Envelope struct {
	// Type is "transcript", "decision" or "answer".
	Type string `json:"type"`

	// Data is the typed payload.
	Data any `json:"data"`
}

// Config tunes the presentation server.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8775".
	ListenAddr string

	// OnContextChange is invoked for each POST /v1/context-change. The
	// collaborator signals that the shared visual context changed
	// materially.
	OnContextChange func()

	// Health serves /healthz and /readyz. Optional.
	Health *health.Handler

	// Log defaults to slog.Default().
	Log *slog.Logger
}

type subscriber struct {
	out chan []byte
}

// Server broadcasts engine outputs and hosts the operational endpoints.
type Server struct {
	cfg Config

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// New creates a presentation server.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("present: listen address must not be empty")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Server{
		cfg:  cfg,
		subs: make(map[*subscriber]struct{}),
	}, nil
}

// Publish sends one envelope to every connected subscriber. A subscriber
// that cannot keep up loses messages rather than slowing the engine.
func (s *Server) Publish(msgType string, data any) {
	b, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		s.cfg.Log.Error("encoding broadcast message", "type", msgType, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.out <- b:
		default:
		}
	}
}

// SubscriberCount returns the number of connected WebSocket clients.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Handler returns the server's routes. Exposed for tests; Run serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("POST /v1/context-change", s.handleContextChange)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}
	return mux
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleContextChange(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.OnContextChange != nil {
		s.cfg.OnContextChange()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.cfg.Log.Warn("websocket accept failed", "error", err)
		return
	}

	sub := &subscriber{out: make(chan []byte, 32)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()

	// Subscribers only listen; a read loop still runs to surface client
	// disconnects promptly.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case msg := <-sub.out:
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}
