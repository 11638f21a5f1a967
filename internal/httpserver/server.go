// Package httpserver serves the metrics scrape handler over HTTP alongside a
// basic health endpoint. Hosts that embed the runtime in an existing server
// mount the runtime handler themselves; the standalone agent uses this server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/metron-labs/metron/internal/config"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"
)

// Config holds the server settings. Zero values fall back to the documented
// defaults.
type Config struct {
	// ListenAddress is the TCP address to listen on. Defaults to ":2112".
	ListenAddress string
	// HandlerPath is where the scrape handler is mounted. Defaults to
	// "/metrics".
	HandlerPath string
	// ReadTimeout bounds reading the full request. Defaults to 5s.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the scrape response. Defaults to 10s.
	WriteTimeout time.Duration
	// IdleTimeout bounds keep-alive connections. Defaults to 15s.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ListenAddress == "" {
		c.ListenAddress = config.DefaultListenAddress
	}
	if c.HandlerPath == "" {
		c.HandlerPath = config.DefaultHandlerPath
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 15 * time.Second
	}
	return c
}

// Server is a small HTTP server dedicated to metrics scraping. It mounts the
// given handler at the configured path and answers "OK" at /health.
type Server struct {
	cfg Config
	log metronlog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	stopped    bool
}

// New creates a Server around the given scrape handler. It panics if the
// handler or logger is nil, as this indicates a programming error.
func New(cfg Config, handler http.Handler, log metronlog.Logger) *Server {
	if handler == nil {
		panic("httpserver: handler cannot be nil")
	}
	if log == nil {
		panic("httpserver: logger cannot be nil")
	}
	cfg = cfg.withDefaults()

	mux := http.NewServeMux()
	mux.Handle(cfg.HandlerPath, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		cfg: cfg,
		log: log.With("component", "HTTPServer"),
		httpServer: &http.Server{
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start binds the listen address and begins serving in the background. Bind
// failures are returned synchronously; the returned channel receives at most
// one error should the server later exit for any reason other than Stop, and
// is closed when serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("metrics server cannot be restarted after Stop")
	}
	if s.listener != nil {
		return nil, fmt.Errorf("metrics server already listening on %s", s.listener.Addr())
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.listener = listener
	s.log.Infof("Serving metrics on %s at path '%s'", listener.Addr(), s.cfg.HandlerPath)

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Metrics server exited: %v", err)
			errChan <- err
		}
	}()
	return errChan, nil
}

// Addr returns the address the server is listening on, or "" before Start.
// With a ":0" listen address this reports the port the kernel picked.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HandlerPath returns the path the scrape handler is mounted at.
func (s *Server) HandlerPath() string {
	return s.cfg.HandlerPath
}

// Stop gracefully shuts the server down, waiting for in-flight scrapes up to
// the context deadline. Stopping a server that never started is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.stopped = true
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	s.log.Debugf("Stopping metrics server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
