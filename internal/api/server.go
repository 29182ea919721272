package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/database"
	"github.com/fluxbase-eu/criteria/internal/middleware"
	"github.com/fluxbase-eu/criteria/internal/observability"
)

// Options carries the optional collaborators of a Server
type Options struct {
	// DB is checked by /health; nil when the database is disabled
	DB database.Executor
	// Permits supplies introspected permits for tables without static fields
	Permits PermitStore
	// Metrics defaults to a private registry
	Metrics *observability.Metrics
	// Tracer defaults to a disabled tracer
	Tracer *observability.Tracer
}

// Server represents the HTTP server
type Server struct {
	app       *fiber.App
	config    *config.Config
	db        database.Executor
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	criteria  *CriteriaHandler
	startTime time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, opts Options) *Server {
	app := fiber.New(fiber.Config{
		ServerHeader:          "criteria",
		AppName:               "criteria " + observability.Version,
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          errorHandler,
	})

	metrics := opts.Metrics
	if metrics == nil {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetricsWithRegistry(reg, reg)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = observability.NewTracer(context.Background(), observability.TracerConfig{Enabled: false})
	}

	server := &Server{
		app:       app,
		config:    cfg,
		db:        opts.DB,
		metrics:   metrics,
		tracer:    tracer,
		criteria:  NewCriteriaHandler(cfg, NewTablePermits(cfg, opts.Permits), metrics, tracer),
		startTime: time.Now(),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

// setupMiddlewares sets up global middlewares
func (s *Server) setupMiddlewares() {
	// Request ID middleware - must be first for tracing
	log.Debug().Msg("Adding requestid middleware")
	s.app.Use(middleware.RequestID())

	if s.tracer.IsEnabled() {
		log.Debug().Msg("Adding OpenTelemetry tracing middleware")
		s.app.Use(middleware.TracingMiddleware(middleware.TracingConfig{
			Enabled:   true,
			SkipPaths: []string{"/health", "/metrics"},
			Provider:  s.tracer.TracerProvider(),
		}))
	}

	log.Debug().Msg("Adding structured logger middleware")
	s.app.Use(middleware.StructuredLogger())

	log.Debug().Msg("Adding recover middleware")
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.config.Debug,
	}))

	s.app.Use(middleware.SecurityHeaders())
	s.app.Use(s.metrics.MetricsMiddleware())
}

// setupRoutes sets up all routes
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	v1 := s.app.Group("/api/v1")

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:        s.config.Server.RateLimit,
		Expiration: s.config.Server.RateLimitWindow,
	})
	v1.Get("/criteria/:table",
		limiter,
		middleware.CacheControl(middleware.CacheControlConfig{Private: true, NoCache: true}),
		middleware.ETag(),
		s.criteria.Resolve,
	)

	v1.Get("/tables", s.criteria.ListTables)
	v1.Delete("/tables/:table/permit", s.criteria.InvalidatePermit)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "ok"
	httpStatus := fiber.StatusOK
	dbStatus := "disabled"

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		dbStatus = "ok"
		if err := s.db.Health(ctx); err != nil {
			log.Error().Err(err).Msg("Database health check failed")
			dbStatus = "unavailable"
			status = "degraded"
			httpStatus = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"database": dbStatus,
			"tracing":  s.tracer.IsEnabled(),
		},
		"tables":    len(s.config.Tables),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	s.metrics.UpdateUptime(s.startTime)
	if conn, ok := s.db.(*database.Connection); ok {
		conn.RecordStats()
	}
	return s.metrics.Handler()(c)
}

// App returns the Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shutdown OpenTelemetry tracer")
	}

	log.Info().Msg("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}
