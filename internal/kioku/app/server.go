package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bdobrica/Kioku/common/version"
)

// MemoryCounter reports how many memories are stored. /status uses it as a
// database liveness check.
type MemoryCounter interface {
	MemoryCount(ctx context.Context) (int, error)
}

// Server is the HTTP front of the bot: /health, /status and whatever
// transports register on it.
type Server struct {
	addr      string
	counter   MemoryCounter
	startedAt time.Time
	mux       *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

type buildInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

type statusReport struct {
	buildInfo
	BuildTime   string    `json:"build_time"`
	StartedAt   time.Time `json:"started_at"`
	UptimeSecs  float64   `json:"uptime_seconds"`
	MemoryCount int       `json:"memory_count"`
	Database    string    `json:"database"`
}

// NewServer builds a Server bound to addr once started. counter may be nil.
func NewServer(addr string, counter MemoryCounter) *Server {
	s := &Server{
		addr:      addr,
		counter:   counter,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handle adds a route. Register everything before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start opens the listener and serves in the background. It returns once the
// port is bound; cancelling ctx shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:     s,
		ReadTimeout: 5 * time.Second,
		// Slack event replies wait on a completion call.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Addr is the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currentBuild())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := statusReport{
		buildInfo:  currentBuild(),
		BuildTime:  version.BuildTime,
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Database:   "ok",
	}
	if s.counter != nil {
		n, err := s.counter.MemoryCount(r.Context())
		if err != nil {
			slog.Warn("status: memory count failed", "err", err)
			report.Status = "degraded"
			report.Database = "error"
		}
		report.MemoryCount = n
	}
	writeJSON(w, http.StatusOK, report)
}

func currentBuild() buildInfo {
	return buildInfo{Status: "ok", Version: version.Version, Commit: version.GitCommit}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", "err", err)
	}
}
