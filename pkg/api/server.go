// Package api exposes the task lifecycle over HTTP and WebSocket: submit,
// query, list, cancel, health, a live event stream, and a synchronous
// /browse endpoint kept for extension clients that have not migrated to the
// async task API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aiassistantthx/browser-ai-backend/pkg/logging"
	"github.com/aiassistantthx/browser-ai-backend/pkg/orchestrator"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "browser-ai-backend"

// Server serves the task API.
type Server struct {
	orch    *orchestrator.Orchestrator
	matcher *originMatcher
	log     *logging.Logger
	ready   func() bool
	httpSrv *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithReadiness sets the probe the health endpoint uses to report whether
// the automation stack is ready to take work.
func WithReadiness(ready func() bool) Option {
	return func(s *Server) {
		s.ready = ready
	}
}

// NewServer builds the API server for the given listen address and CORS
// origin patterns.
func NewServer(addr string, allowedOrigins []string, orch *orchestrator.Orchestrator, opts ...Option) (*Server, error) {
	matcher, err := newOriginMatcher(allowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed origin pattern: %w", err)
	}

	s := &Server{
		orch:    orch,
		matcher: matcher,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with CORS applied. Exposed so tests can
// drive the API through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /tasks", s.handleSubmit)
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("GET /tasks/{id}", s.handleGet)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleCancel)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /browse", s.handleBrowse)
	mux.Handle("/ws", s.websocketHandler())

	return corsMiddleware(s.matcher, mux)
}

// ListenAndServe blocks serving the API until the server is shut down.
func (s *Server) ListenAndServe() error {
	if s.log != nil {
		s.log.Infof("listening on %s", s.httpSrv.Addr)
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
