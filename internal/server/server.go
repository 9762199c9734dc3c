package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/handlers"
)

// Server serves the job API. Handlers only enqueue and read jobs, so short
// write timeouts are enough.
type Server struct {
	cfg    common.ServerConfig
	jobs   *handlers.JobHandler
	logger arbor.ILogger
	http   *http.Server
}

func New(cfg common.ServerConfig, jobs *handlers.JobHandler, logger arbor.ILogger) *Server {
	s := &Server{cfg: cfg, jobs: jobs, logger: logger}
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.withMiddleware(s.setupRoutes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens and serves until Shutdown. A bind failure is returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Bool("api_key_required", s.cfg.APIKey != "").
		Msg("HTTP server listening")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
