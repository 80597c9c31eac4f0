// Package server exposes the operational HTTP surface: Prometheus metrics,
// a health check, and a websocket feed of transcribed messages for live
// consumers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/discord-scribe/internal/logging"
	"github.com/discord-scribe/internal/transcribe"
)

const writeTimeout = 5 * time.Second

// subscriber serializes writes to one connection. gorilla/websocket permits
// at most one concurrent writer per connection, and Broadcast is called from
// several orchestrator workers at once.
type subscriber struct {
	mu sync.Mutex
}

// Server serves /metrics, /healthz and /ws.
type Server struct {
	srv *http.Server

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*subscriber
}

// New builds the server for the given listen address and metrics registry.
func New(addr string, reg *prometheus.Registry) *Server {
	s := &Server{
		clients: make(map[*websocket.Conn]*subscriber),
		upgrader: websocket.Upgrader{
			// The feed is read-only and carries no credentials; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		logging.Infow("server: listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorw("server: listen failed", "err", err)
		}
	}()
}

// Shutdown closes all websocket clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		_ = c.Close()
		delete(s.clients, c)
	}
	s.mu.Unlock()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("server: websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = &subscriber{}
	n := len(s.clients)
	s.mu.Unlock()
	logging.Infow("server: websocket subscriber connected", "remote", r.RemoteAddr, "subscribers", n)

	// Drain (and discard) client frames so pings and closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// Broadcast pushes one message to every subscriber. Safe for concurrent use;
// slow or broken clients are dropped rather than allowed to stall the
// pipeline.
func (s *Server) Broadcast(msg transcribe.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Warnw("server: failed to marshal message", "err", err)
		return
	}

	s.mu.Lock()
	conns := make(map[*websocket.Conn]*subscriber, len(s.clients))
	for c, sub := range s.clients {
		conns[c] = sub
	}
	s.mu.Unlock()

	for c, sub := range conns {
		sub.mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			logging.Warnw("server: dropping websocket subscriber", "err", err)
			s.drop(c)
		}
	}
}

func (s *Server) drop(c *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		_ = c.Close()
	}
	s.mu.Unlock()
}
