// Package http provides the namingd HTTP API.
package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/namingd/internal/logging"
	"github.com/fyrsmithlabs/namingd/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server provides HTTP endpoints for namingd.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	BodyLimit string

	// RateLimit is the sustained public requests per second allowed per
	// client IP. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// AdminToken guards /api/admin. Empty leaves it open, and the bulk
	// clear routes are then not registered at all.
	AdminToken string
}

// NewServer creates a new HTTP server.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("service registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the logged status is final.
				c.Error(err)
			}

			logger.Info("http request", append(logging.ContextFields(ctx),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	public := s.echo.Group("/api/public")
	if s.config.RateLimit > 0 {
		public.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimit),
				Burst:     s.config.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}
	public.GET("/search", s.handleSearch)
	public.GET("/similar-morphemes", s.handleSimilarMorphemes)
	public.POST("/field-requests", s.handleSubmitFieldRequest)

	admin := s.echo.Group("/api/admin")
	if s.config.AdminToken != "" {
		token := []byte(s.config.AdminToken)
		admin.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), token) == 1, nil
			},
			ErrorHandler: func(err error, _ echo.Context) error {
				return &echo.HTTPError{Code: http.StatusUnauthorized, Message: "invalid or missing admin token", Internal: err}
			},
		}))
	}
	admin.GET("/suggest", s.handleSuggest)

	admin.GET("/morphemes", s.handleListMorphemes)
	admin.POST("/morphemes", s.handleCreateMorpheme)
	admin.POST("/morphemes/batch", s.handleCreateMorphemes)
	admin.GET("/morphemes/:id", s.handleGetMorpheme)
	admin.PUT("/morphemes/:id", s.handleUpdateMorpheme)
	admin.DELETE("/morphemes/:id", s.handleDeleteMorpheme)

	admin.GET("/composites", s.handleListComposites)
	admin.POST("/composites", s.handleCreateComposite)
	admin.GET("/composites/:id", s.handleGetComposite)
	admin.PUT("/composites/:id", s.handleUpdateComposite)
	admin.DELETE("/composites/:id", s.handleDeleteComposite)

	if s.config.AdminToken != "" {
		admin.DELETE("/morphemes", s.handleClearMorphemes)
		admin.DELETE("/composites", s.handleClearComposites)
	}

	admin.POST("/resync/:collection", s.handleResync)
	admin.POST("/sync/:collection/:id", s.handleSync)

	admin.GET("/field-requests", s.handleListFieldRequests)
	admin.GET("/field-requests/count", s.handleCountFieldRequests)
	admin.POST("/field-requests/:id/complete", s.handleCompleteFieldRequest)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
