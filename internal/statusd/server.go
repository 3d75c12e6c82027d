// ABOUTME: Local HTTP status server for external UIs and scrapers
// ABOUTME: Serves /metrics, /healthz, and a /events WebSocket status stream
package statusd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AudioLink-Project/audiolink-go/internal/version"
	"github.com/AudioLink-Project/audiolink-go/pkg/bridge"
)

var upgrader = websocket.Upgrader{
	// The endpoint binds to loopback by default; cross-origin browser UIs
	// on the same host are allowed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server broadcasts engine status events over WebSocket and exposes
// Prometheus metrics. It never blocks a publisher: slow subscribers drop
// events.
type Server struct {
	httpServer *http.Server

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	lastStatus  map[string]bridge.Status
}

type subscriber struct {
	events chan bridge.Status
}

// New creates a status server listening on addr.
func New(addr string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		subscribers: make(map[*subscriber]struct{}),
		lastStatus:  make(map[string]bridge.Status),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Printf("Status server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for sub := range s.subscribers {
		close(sub.events)
	}
	s.subscribers = make(map[*subscriber]struct{})
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// Publish fans one status event out to all subscribers without blocking.
func (s *Server) Publish(status bridge.Status) {
	s.mu.Lock()
	s.lastStatus[status.Pipeline] = status
	for sub := range s.subscribers {
		select {
		case sub.events <- status:
		default:
			// Subscriber is behind; drop rather than stall the bridge.
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"product": version.Product,
		"version": version.Version,
		"status":  "ok",
	})
}

// handleEvents upgrades to WebSocket and streams status events as JSON.
// The current state of each pipeline is replayed on connect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{events: make(chan bridge.Status, 32)}

	s.mu.Lock()
	replay := make([]bridge.Status, 0, len(s.lastStatus))
	for _, status := range s.lastStatus {
		replay = append(replay, status)
	}
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, status := range replay {
		if err := conn.WriteJSON(status); err != nil {
			return
		}
	}

	for status := range sub.events {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(status); err != nil {
			return
		}
	}
}
