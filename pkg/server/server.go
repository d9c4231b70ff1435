package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/poebridge/pkg/assistants"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/config"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/housekeeping"
	"mercator-hq/poebridge/pkg/proxy/handlers"
	"mercator-hq/poebridge/pkg/proxy/middleware"
	securitytls "mercator-hq/poebridge/pkg/security/tls"
	"mercator-hq/poebridge/pkg/telemetry/metrics"
	"mercator-hq/poebridge/pkg/telemetry/tracing"
)

// Server owns the service graph and the HTTP listener.
type Server struct {
	cfg     *config.Config
	version string

	api          backend.API
	backend      *backend.Client
	metrics      *metrics.Collector
	tracer       *tracing.Tracer
	models       *capability.Table
	watcher      *capability.Watcher
	files        *files.Registry
	assistants   *assistants.Store
	housekeeping *housekeeping.Scheduler
	dispatcher   *handlers.Dispatcher
	handler      http.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option customizes a Server.
type Option func(*Server)

// WithBackend replaces the Poe client, typically with a fake in tests.
func WithBackend(api backend.API) Option {
	return func(s *Server) { s.api = api }
}

// WithRegistry registers metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics.NewCollector(s.cfg.Telemetry.Metrics, registry)
	}
}

// New builds every service from cfg. The returned server has not started
// listening; call Start, or mount Handler in a test server.
func New(ctx context.Context, cfg *config.Config, version string, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, version: version}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	}

	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracer = tracer

	if err := s.build(ctx); err != nil {
		s.close()
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	s.handler = s.setupRoutes()
	return s, nil
}

// setupRoutes mounts the metrics endpoint next to the API dispatcher and
// wraps both in the middleware chain. Recovery is outermost; the request ID
// is assigned before the logging middleware so every line carries it.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.Telemetry.Metrics.Enabled {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, s.metrics.Handler())
	}
	mux.Handle("/", s.dispatcher)

	var handler http.Handler = mux
	handler = middleware.TimeoutMiddleware(s.cfg.Server.RequestTimeout)(handler)
	handler = middleware.CORSMiddleware(s.cfg.Server.CORS)(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and blocks until ctx is done or
// the listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	tlsConfig, err := securitytls.ServerConfig(ctx, s.cfg.Server.TLS)
	if err != nil {
		s.setRunning(false)
		return fmt.Errorf("failed to configure TLS: %w", err)
	}

	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		s.setRunning(false)
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
		TLSConfig:      tlsConfig,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Watch(ctx); err != nil {
				slog.Error("model catalog watcher stopped", "error", err)
			}
		}()
	}
	if err := s.housekeeping.Start(ctx); err != nil {
		slog.Warn("failed to start housekeeping scheduler", "error", err)
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting poebridge server",
			"address", ln.Addr().String(),
			"tls_enabled", tlsConfig != nil,
			"models", s.models.Len(),
		)

		var err error
		if tlsConfig != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if ok {
			_ = s.Shutdown(context.Background())
			return err
		}
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections, waits for in-flight requests up to
// the shutdown timeout and releases every service. It is safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.close()

		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}

		s.setRunning(false)

		slog.Info("poebridge server stopped")
	})

	return shutdownErr
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Models returns the capability table the server routes by.
func (s *Server) Models() *capability.Table {
	return s.models
}
