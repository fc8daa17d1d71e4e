package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	mw "github.com/scanline/dsnscan/internal/api/middleware"
	v1 "github.com/scanline/dsnscan/internal/api/v1"
	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// Server is the diagnostics HTTP server.
// It manages the Echo instance, middleware and routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	processor *processor.Processor
	metrics   *observability.Metrics
	build     buildinfo.BuildInfo

	apiController *v1.Controller
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics serves the registry on /metrics and records API operations.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the build metadata reported by the health endpoint.
func WithBuildInfo(info buildinfo.BuildInfo) ServerOption {
	return func(s *Server) {
		s.build = info
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithConfig overrides the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// New creates the diagnostics server for proc.
func New(settings *conf.Settings, proc *processor.Processor, opts ...ServerOption) (*Server, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}

	s := &Server{
		config:    ConfigFromSettings(settings),
		settings:  settings,
		processor: proc,
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("diagnostics server initialized",
		logger.String("address", s.config.Listen),
		logger.Bool("metrics", s.metrics != nil))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, mw.SkipPaths("/metrics", "/api/v1/health")))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes registers the v1 API and the metrics endpoint.
func (s *Server) setupRoutes() {
	opts := []v1.Option{v1.WithLogger(s.log)}
	if s.build != nil {
		opts = append(opts, v1.WithBuildInfo(s.build))
	}
	var recorder metrics.Recorder = metrics.NopRecorder{}
	if s.metrics != nil {
		recorder = s.metrics.Pipeline
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	opts = append(opts, v1.WithRecorder(recorder))

	s.apiController = v1.New(s.echo, s.processor, opts...)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	s.echo.Listener = ln
	go func() {
		errCh <- s.echo.Start("")
	}()

	s.log.Info("diagnostics server listening", logger.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("diagnostics server stopped", logger.Duration("duration", time.Since(start)))
	return nil
}
