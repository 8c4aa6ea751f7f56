// Package metrics exposes the Prometheus metrics of the application.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config is the configuration of the metrics server.
type Config struct {
	Host string
	// Port 0 picks a free port.
	Port int
	// ReadTimeout defaults to 5 seconds.
	ReadTimeout time.Duration
}

// Server serves a registry on /metrics.
type Server struct {
	httpServer *http.Server

	mu       sync.RWMutex
	addr     net.Addr
	serveErr chan error
}

// NewServer returns a Server of the metrics gathered by reg.
func NewServer(cfg Config, reg prometheus.Gatherer) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorLog: slogAdapter{}}))

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
		},
	}
}

// Start listens on the configured address and serves in the background.
// Listening errors are returned immediately.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("could not listen for metrics: %v", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr()
	s.serveErr = make(chan error, 1)
	s.mu.Unlock()

	go func() {
		err := s.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
		close(s.serveErr)
	}()
	slog.Info("Serving metrics", "address", listener.Addr().String())

	return nil
}

// Shutdown gracefully stops the server and returns the serving error, if any.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	serveErr := s.serveErr
	s.mu.RUnlock()
	if serveErr == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return <-serveErr
}

// Addr returns the address the server listens on, or an empty string before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// slogAdapter reports promhttp errors through slog.
type slogAdapter struct{}

func (slogAdapter) Println(v ...any) {
	slog.Error(fmt.Sprint(v...))
}
