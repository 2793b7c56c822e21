// Package server exposes the reader over a websocket so browser extensions
// and other local clients can drive it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
)

// Handler answers control requests.
type Handler interface {
	Handle(ctx context.Context, req reader.Request) reader.Response
}

// HealthChecker probes the speech service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds the server settings.
type Config struct {
	Addr   string
	Logger *log.Logger
}

// Server accepts websocket clients and broadcasts playback events to them.
// It implements playback.EventSink.
type Server struct {
	handler Handler
	health  HealthChecker
	addr    string
	logger  *log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
	wg      sync.WaitGroup
}

// New creates a server. health may be nil.
func New(handler Handler, health HealthChecker, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("server")
	}
	return &Server{
		handler: handler,
		health:  health,
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Extension pages connect with their own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// Routes returns the HTTP handler serving /ws and /health.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves until ctx is canceled, then shuts down and waits for clients.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		close(errc)
	}()
	s.logger.Info("Listening", "addr", s.addr)

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	s.closeClients()
	s.wg.Wait()
	return err
}

// Emit broadcasts ev to every connected client.
func (s *Server) Emit(ev playback.Event) {
	data, err := eventFrame(ev)
	if err != nil {
		s.logger.Error("Failed to encode event", "action", ev.Action, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.enqueue(data)
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(conn, s)
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Info("Client connected", "client", c.id, "remote", r.RemoteAddr)

	s.wg.Add(1)
	defer s.wg.Done()

	// The request context stays live until the handler returns.
	c.run(r.Context())
	s.remove(c)
	s.logger.Info("Client disconnected", "client", c.id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	status, body := http.StatusOK, map[string]any{"status": "ok", "clients": s.Clients()}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.health.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["error"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) remove(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		c.close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.conn.Close()
		c.close()
		delete(s.clients, id)
	}
}
