// Package server owns the HTTP listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/config"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration. WriteTimeout
// covers a full provider call.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ConfigFrom copies the HTTP section of the application config.
func ConfigFrom(c config.HTTPConfig) Config {
	return Config{
		Host:         c.Host,
		Port:         c.Port,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
	}
}

// Server wraps the HTTP server.
type Server struct {
	config Config
	http   *http.Server
	log    logger.Logger
}

// NewServer creates a server for handler.
func NewServer(handler http.Handler, config Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           handler,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return &Server{config: config, http: httpServer, log: log}
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start listens on the configured address and serves until Shutdown.
// A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }
	s.log.Info("http server listening", map[string]interface{}{"addr": ln.Addr().String()})
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server", nil)
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("http server stopped", nil)
	return nil
}
