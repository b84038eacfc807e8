package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gopm2/gopm2/internal/history"
	"github.com/gopm2/gopm2/internal/metrics"
	"github.com/gopm2/gopm2/pkg/pm2"
)

// Server exposes the process manager over HTTP.
type Server struct {
	echo    *echo.Echo
	manager *pm2.Manager
	history *history.Store // optional, nil disables recording
}

// NewServer creates an API server with all routes configured. The history
// store may be nil; operations are then simply not recorded.
func NewServer(mgr *pm2.Manager, hist *history.Store, apiKey string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		manager: mgr,
		history: hist,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(metrics.EchoMiddleware())

	// Health and metrics (no auth)
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.Use(apiKeyMiddleware(apiKey))

	// Process lifecycle
	api.GET("/processes", s.listProcesses)
	api.POST("/processes", s.startProcess)
	api.GET("/processes/:id", s.getProcess)
	api.POST("/processes/:id/stop", s.stopProcess)
	api.POST("/processes/:id/restart", s.restartProcess)
	api.POST("/processes/:id/reload", s.reloadProcess)
	api.DELETE("/processes/:id", s.deleteProcess)

	// Logs
	api.GET("/processes/:id/logs", s.getLogs)
	api.POST("/processes/:id/logs/flush", s.flushLogs)
	api.POST("/logs/flush", s.flushAllLogs)

	// Daemon
	api.POST("/daemon/save", s.saveProcessList)
	api.POST("/daemon/resurrect", s.resurrectProcesses)

	// History
	api.GET("/history", s.listHistory)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Close shuts down the server.
func (s *Server) Close() error {
	return s.echo.Close()
}

func (s *Server) health(c echo.Context) error {
	status := "ok"
	daemon := "up"
	if !s.manager.IsRunning(c.Request().Context()) {
		daemon = "down"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": status,
		"daemon": daemon,
	})
}

// apiKeyMiddleware validates the X-API-Key header against the configured
// key. An empty configured key disables authentication (development mode).
func apiKeyMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			provided := c.Request().Header.Get("X-API-Key")
			if provided == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing API key",
				})
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "invalid API key",
				})
			}
			return next(c)
		}
	}
}
