// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Server answers /healthz (liveness) and /readyz (readiness). Readiness
// flips on once wiring is complete and off again during shutdown.
type Server struct {
	server *http.Server
	ready  atomic.Bool
	start  time.Time
}

type status struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// NewServer creates a health server on the given port.
func NewServer(port int) *Server {
	s := &Server{start: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLive)
	mux.HandleFunc("/readyz", s.handleReady)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetReady marks the process ready (or not) to take work.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, "alive")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.write(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	s.write(w, http.StatusOK, "ready")
}

func (s *Server) write(w http.ResponseWriter, code int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status{
		Status: state,
		Uptime: time.Since(s.start).Round(time.Second).String(),
	})
}
