// Package admin exposes the state of a running sweep over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"hnp-sim/internal/sweep"
)

// StateProvider is satisfied by *sweep.Controller.
type StateProvider interface {
	State() sweep.State
}

type Server struct {
	Sweep  StateProvider
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewServer(p StateProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Sweep: p, logger: logger.With("component", "admin"), mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /detections", s.handleDetections)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP lets the server be mounted or tested without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr and serves until ctx is done. ready, when not nil, is
// called once the listener is bound.
func (s *Server) Start(ctx context.Context, addr string, ready func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("admin endpoint listening", "addr", ln.Addr().String())
	if ready != nil {
		ready()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sweep.State())
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	d := s.Sweep.State().Detections
	if d == nil {
		d = []sweep.Detection{}
	}
	writeJSON(w, d)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true})
}
