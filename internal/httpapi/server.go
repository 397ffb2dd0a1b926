// Package httpapi exposes the dashboard data layer over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/dashboard"
	"github.com/goliatone/go-dashboard-cache/internal/metrics"
)

// StatsReporter reports the number of entries held by each cache tier.
type StatsReporter interface {
	Stats() (memory, durable int)
}

// Deps are the components the server routes to. Metrics and Stats are optional.
type Deps struct {
	Orchestrator *dashboard.Orchestrator
	Filters      *dashboard.FilterStore
	Stores       *dashboard.StoreDirectory
	Stats        StatsReporter
	Metrics      *metrics.Prometheus
	Logger       logrus.FieldLogger
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the echo HTTP facade over the dashboard data layer.
type Server struct {
	echo   *echo.Echo
	config ServerConfig
	deps   Deps
	logger logrus.FieldLogger
}

// NewServer registers middleware and routes for deps.
func NewServer(config ServerConfig, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{echo: e, config: config, deps: deps, logger: logger}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	if s.deps.Metrics != nil {
		s.echo.Use(s.deps.Metrics.Middleware())
	}
	s.echo.Use(s.requestLogging())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	api := s.echo.Group("/api")
	api.GET("/datasets/:service/:operation", s.getDataset)
	api.GET("/stores", s.listStores)
	api.GET("/stores/:store/:endpoint", s.getStoreData)
	api.GET("/cache/:key", s.getCached)
	api.DELETE("/cache", s.invalidate)
	api.DELETE("/cache/all", s.clear)
	api.GET("/filters", s.getFilters)
	api.PUT("/filters", s.updateFilters)
	api.GET("/status", s.status)
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	server := &http.Server{
		Addr:         s.config.Addr,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.logger.WithField("addr", s.config.Addr).Info("starting http server")
	return s.echo.StartServer(server)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Path(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"elapsed":    time.Since(start),
			}).Debug("request handled")
			return err
		}
	}
}
