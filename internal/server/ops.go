package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const healthTimeout = 3 * time.Second

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Message: s.cfg.General.Title,
		Version: s.cfg.General.Version,
		Docs:    "/docs",
	})
}

// health pings Postgres and Redis. Either failure reports the service
// unhealthy with 503 so orchestrators stop routing to it.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.String("backend", "database"), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
	}
	if err := s.jobs.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.String("backend", "redis"), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Database: "connected", Redis: "connected"})
}
