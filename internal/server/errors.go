package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/tosclarity/internal/clarity"
	"github.com/mohammad-safakhou/tosclarity/internal/jobs"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
	"go.uber.org/zap"
)

// errCacheUnavailable marks job cache failures, which are transient.
var errCacheUnavailable = errors.New("job cache unavailable")

// statusFor maps an error to a status code and the detail shown to clients.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error()
	case errors.Is(err, clarity.ErrSummaryNotFound):
		return http.StatusNotFound, "Summary not found"
	case errors.Is(err, clarity.ErrDocumentNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, store.ErrReferentialIntegrity):
		return http.StatusConflict, "Referenced record does not exist"
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, errCacheUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// errorHandler renders every handler error as {"detail": msg} and logs it.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("ip", c.RealIP()),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Debug("request rejected", fields...)
	}
	if code == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, HTTPError{Detail: msg})
}
