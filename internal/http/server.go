// Package http provides the REST and operations HTTP server: account
// registration and login, profile and history lookups, health, and metrics.
package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SkyMonder/SkyCallPro/internal/auth"
	"github.com/SkyMonder/SkyCallPro/internal/chat"
	"github.com/SkyMonder/SkyCallPro/internal/directory"
	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
)

// Server is the REST/ops HTTP server.
type Server struct {
	echo   *echo.Echo
	dir    *directory.Directory
	chat   *chat.Relay
	hub    *hub.Hub
	reg    *registry.Registry
	tokens *auth.Manager
	logger zerolog.Logger
}

// NewServer creates the REST server and registers all routes.
func NewServer(dir *directory.Directory, chatRelay *chat.Relay, h *hub.Hub, reg *registry.Registry,
	tokens *auth.Manager, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		dir:    dir,
		chat:   chatRelay,
		hub:    h,
		reg:    reg,
		tokens: tokens,
		logger: logger,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.GET("/users/:username", s.handleProfile)

	authed := api.Group("", s.requireToken)
	authed.GET("/history/:peer", s.handleHistory)
	authed.PUT("/profile", s.handleUpdateProfile)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// requireToken validates the bearer token and stores the username in context.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
		}
		username, err := s.tokens.Verify(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		c.Set("username", username)
		return next(c)
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.hub.Count(),
		"online":      s.reg.OnlineCount(),
	})
}
