package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vitalstats/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	referenceHandler    *ReferenceHandler
	dashboardHandler    *DashboardHandler
	cartorioHandler     *CartorioHandler
	invalidationHandler *InvalidationHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config              *config.ServerConfig
	Logger              *slog.Logger
	ReferenceHandler    *ReferenceHandler
	DashboardHandler    *DashboardHandler
	CartorioHandler     *CartorioHandler
	InvalidationHandler *InvalidationHandler

	// DisableRequestLog turns off the per-request access log.
	DisableRequestLog bool
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:                 app,
		config:              deps.Config,
		logger:              deps.Logger,
		referenceHandler:    deps.ReferenceHandler,
		dashboardHandler:    deps.DashboardHandler,
		cartorioHandler:     deps.CartorioHandler,
		invalidationHandler: deps.InvalidationHandler,
	}

	s.registerMiddleware(!deps.DisableRequestLog)
	s.registerRoutes()

	return s
}

func (s *Server) registerMiddleware(requestLog bool) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	s.app.Use(requestid.New())

	if requestLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.healthCheck)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")

	// Cached backend reads
	v1.Get("/regioes", s.referenceHandler.Regions)
	v1.Get("/ufs", s.referenceHandler.States)
	v1.Get("/ufs/:id/municipios", s.referenceHandler.Municipalities)
	v1.Get("/ufs/:id/:ano/estatisticas", s.referenceHandler.StateStatistics)
	v1.Get("/ufs/:id/:ano/municipios/estatisticas", s.referenceHandler.MunicipalityStatistics)

	// Dashboard sessions
	v1.Post("/sessions", s.dashboardHandler.Create)
	v1.Get("/sessions/:id", s.dashboardHandler.Get)
	v1.Delete("/sessions/:id", s.dashboardHandler.Delete)
	v1.Put("/sessions/:id/filters", s.dashboardHandler.ApplyFilters)
	v1.Post("/sessions/:id/reload", s.dashboardHandler.Reload)
	v1.Put("/sessions/:id/selection", s.dashboardHandler.Select)
	v1.Delete("/sessions/:id/selection", s.dashboardHandler.ClearSelection)
	v1.Put("/sessions/:id/hover", s.dashboardHandler.HoverEnter)
	v1.Delete("/sessions/:id/hover", s.dashboardHandler.HoverLeave)

	// Cartórios
	v1.Get("/cartorios", s.cartorioHandler.List)
	v1.Post("/cartorios", s.cartorioHandler.Create)
	v1.Get("/cartorios/:id", s.cartorioHandler.GetByID)
	v1.Put("/cartorios/:id", s.cartorioHandler.Update)
	v1.Delete("/cartorios/:id", s.cartorioHandler.Delete)

	// Cache maintenance
	v1.Post("/cache/invalidations", s.invalidationHandler.Create)
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// Test serves one request in-process without a listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

// errorHandler renders errors that escaped the handlers, such as unknown
// routes, in the response envelope.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := ErrCodeInternalError
			switch fe.Code {
			case fiber.StatusNotFound:
				code = ErrCodeNotFound
			case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
				code = ErrCodeBadRequest
			}
			return Error(c, fe.Code, code, fe.Message)
		}
		return HandleError(c, log, err)
	}
}
