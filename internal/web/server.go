package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"parking-backend/internal/services"
)

// Server exposes the live parking snapshot as JSON. Rendering is the
// dashboard's job; this only serves the data.
type Server struct {
	capacity services.CapacityProvider
	srv      *http.Server
}

// NewServer creates the status server listening on addr.
func NewServer(addr string, capacity services.CapacityProvider) *Server {
	s := &Server{capacity: capacity}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	log.Printf("Web: Status endpoint on http://%s/api/status", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Web: Server stopped: %v", err)
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.capacity.Snapshot()); err != nil {
		log.Printf("Web: Failed to encode status: %v", err)
	}
}
