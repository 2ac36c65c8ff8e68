// Package server exposes the speech resolver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/book-expert/speech-service/internal/core"
	"github.com/book-expert/speech-service/internal/speech"
)

const readHeaderTimeout = 10 * time.Second

// Resolver resolves a synthesis request to audio.
type Resolver interface {
	Resolve(ctx context.Context, req core.SynthesisRequest) (*speech.Result, error)
}

// Server represents the HTTP server.
type Server struct {
	ln         net.Listener
	httpServer *http.Server

	Resolver Resolver
	Defaults core.Defaults
	Log      *logger.Logger

	// Server options.
	Addr      string // bind address
	StaticDir string // static content root; empty disables static serving
}

// NewServer returns a new Server.
func NewServer(resolver Resolver, defaults core.Defaults, log *logger.Logger) *Server {
	return &Server{
		Resolver: resolver,
		Defaults: defaults,
		Log:      log,
	}
}

// Open starts listening on Addr and serves in the background.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	s.ln = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		serveErr := s.httpServer.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.Log.Error("HTTP server stopped: %v", serveErr)
		}
	}()

	s.Log.System("API running on %s", ln.Addr().String())

	return nil
}

// Close gracefully shuts the server down, waiting for in-flight requests until ctx expires.
func (s *Server) Close(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

// URL returns the base URL of the server. It is available after Open.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}

	return "http://" + s.ln.Addr().String()
}

// Handler returns the router with all middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(strictTransportSecurity)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/speech", s.handleSpeech)

	if s.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("hello"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
