// Package http provides the HTTP API for inventoryd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/copilot"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/search"
)

// TenantHeader carries the tenant identifier on CRUD and search requests.
const TenantHeader = "X-Tenant-ID"

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RequestTimeout bounds each chat/search/CRUD request so a hung
	// upstream dependency cannot stall a session indefinitely.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// Search defaults applied when the request does not override them.
	SearchMaxResults    int
	SearchMinSimilarity float32
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = search.DefaultMaxResults
	}
	if c.SearchMinSimilarity == 0 {
		c.SearchMinSimilarity = search.DefaultMinSimilarity
	}
}

// Server exposes the equipment CRUD, search, and chat endpoints.
type Server struct {
	echo         *echo.Echo
	logger       *zap.Logger
	config       Config
	equipment    *equipment.Service
	engine       search.Engine
	orchestrator *copilot.Orchestrator
	sessions     *copilot.Sessions
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(
	cfg Config,
	equipmentSvc *equipment.Service,
	engine search.Engine,
	orchestrator *copilot.Orchestrator,
	sessions *copilot.Sessions,
	logger *zap.Logger,
) (*Server, error) {
	if equipmentSvc == nil {
		return nil, fmt.Errorf("equipment service is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("search engine is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:         e,
		logger:       logger,
		config:       cfg,
		equipment:    equipmentSvc,
		engine:       engine,
		orchestrator: orchestrator,
		sessions:     sessions,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/equipment", s.handleListEquipment)
	v1.POST("/equipment", s.handleCreateEquipment)
	v1.GET("/equipment/search", s.handleSearchEquipment)
	v1.GET("/equipment/:id", s.handleGetEquipment)
	v1.PUT("/equipment/:id", s.handleUpdateEquipment)
	v1.DELETE("/equipment/:id", s.handleDeleteEquipment)
	v1.POST("/chat", s.handleChat)
	v1.POST("/chat/clear", s.handleChatClear)
}

// Echo returns the underlying echo instance (used by tests).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
