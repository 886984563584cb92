// Package http provides the ragbrain HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/ragbrain/internal/clienterrors"
	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/ingest"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/internal/orchestrator"
	"github.com/fyrsmithlabs/ragbrain/pkg/auth"
)

// Brain answers chat messages.
type Brain interface {
	Execute(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Ingester stores tenant documents.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (documents.Document, error)
}

// Reporter records client error reports.
type Reporter interface {
	Record(ctx context.Context, r clienterrors.Report) error
}

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Ping calls f.
func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps are the services behind the routes. Brain is required; a nil
// Ingester or Reporter leaves its route unregistered.
type Deps struct {
	Brain        Brain
	Ingester     Ingester
	ClientErrors Reporter
	Store        Checker
	Gateway      Checker
}

// Server provides HTTP endpoints for ragbrain.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  *logging.Logger
	config  *config.Config
	metrics *HTTPMetrics
}

// Option configures a Server.
type Option func(*Server)

// WithMeter records request metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(s *Server) { s.metrics = newHTTPMetrics(m, s.logger) }
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, deps Deps, logger *logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Brain == nil {
		return nil, errors.New("brain is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger.Named("http"),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORS.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			auth.HeaderGatewayKey,
			auth.HeaderAdminToken,
		},
		MaxAge: 86400,
	}))
	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		e.Use(rateLimiter(rl))
	}

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleLiveness)
	if s.config.Server.MetricsEnabled {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	requireKey := auth.KeyMiddleware(s.config.Auth.RequireKey)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/brain", s.handleBrain, requireKey)
	v1.GET("/health", s.handleHealth, auth.KeyMiddleware(true))
	if s.deps.Ingester != nil {
		v1.POST("/ingest", s.handleIngest,
			auth.AdminMiddleware(s.config.Auth.AdminToken.Value()),
			auth.KeyMiddleware(true))
	}
	if s.deps.ClientErrors != nil {
		v1.POST("/client-errors", s.handleClientError)
	}

	gw := s.config.Gateway
	v1.POST("/gateway/chat", echo.NotFoundHandler, requireKey, s.gatewayProxy(gw.Origin, "/api/v1/gateway/chat", gw.ChatPath))
	v1.POST("/gateway/stream", echo.NotFoundHandler, requireKey, s.gatewayProxy(gw.Origin, "/api/v1/gateway/stream", gw.StreamPath))
}

// rateLimiter limits each client IP to a token bucket.
func rateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS) + 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RPS),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
		},
	})
}

// requestLogger logs one line per request and carries the request id
// into the request context.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), requestID)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Render now so the logged status is the one sent.
				c.Error(err)
			}

			s.logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return nil
		}
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
