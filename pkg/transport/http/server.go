package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/transport"
)

// Server wraps an http.Server with the query adapter and manages the
// lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the server.
type ServerConfig struct {
	Addr              string
	MaxBodySize       int64
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	Logger            *slog.Logger

	// Protect wraps the API routes (see Config.Protect).
	Protect func(http.Handler) http.Handler

	// Readiness backs /readyz. Nil means always ready.
	Readiness func(ctx context.Context) error

	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string

	// Mounts are extra handlers, such as the MCP endpoint. They pass
	// through Protect like the API routes.
	Mounts map[string]http.Handler
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		MaxBodySize:       1 << 20,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		Logger:            slog.Default(),
		MetricsPath:       "/metrics",
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithTimeouts sets the read and write timeouts of the underlying
// http.Server. The write timeout must exceed the longest query deadline.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithProtect wraps the API routes, typically with auth.Middleware.
func WithProtect(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.config.Protect = mw }
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(ctx context.Context) error) ServerOption {
	return func(s *Server) { s.config.Readiness = check }
}

// WithMetricsPath sets the Prometheus endpoint path. Empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithMount serves h under pattern, behind the Protect wrapper.
func WithMount(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		if s.config.Mounts == nil {
			s.config.Mounts = make(map[string]http.Handler)
		}
		s.config.Mounts[pattern] = h
	}
}

// NewServer creates a server for handler. The store is optional (nil
// disables the session endpoints). Recovery, request ID and logging
// middleware are applied to the query handler automatically.
func NewServer(handler transport.QueryHandler, catalog *registry.Registry, store transport.TranscriptStore, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(handler, catalog, store, Config{
		MaxBodySize: s.config.MaxBodySize,
		Protect:     s.config.Protect,
	}, defaultMW...)

	s.adapter.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	s.adapter.Handle("GET /readyz", http.HandlerFunc(s.handleReady))
	if s.config.MetricsPath != "" {
		s.adapter.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}
	for pattern, h := range s.config.Mounts {
		if s.config.Protect != nil {
			h = s.config.Protect(h)
		}
		s.adapter.Handle(pattern, h)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.adapter.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.config.Readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.config.Readiness(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then shuts down gracefully, waiting
// for in-flight queries within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

// ServeOn serves on ln until SIGINT or SIGTERM. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
