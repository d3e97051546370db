package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/tosclarity/internal/clarity"
	"github.com/mohammad-safakhou/tosclarity/internal/jobs"
	"go.uber.org/zap"
)

const estimatedAnalysisSeconds = 15

// analyze accepts a policy URL and registers a job for it. The analysis
// itself runs elsewhere; this only records the placeholder status.
func (s *Server) analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body").SetInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	target, err := clarity.CanonicalURL(req.URL)
	if err != nil || (!strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://")) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "url must be an absolute http or https URL")
	}

	id := uuid.New()
	if err := s.jobs.Set(c.Request().Context(), id, jobs.StatusProcessing); err != nil {
		return fmt.Errorf("%w: %w", errCacheUnavailable, err)
	}
	recordJobAccepted(c.Request().Context())
	s.log.Info("analysis job accepted", zap.String("job_id", id.String()), zap.String("url", target))

	return c.JSON(http.StatusOK, AnalyzeResponse{
		JobID:                id,
		Status:               string(jobs.StatusProcessing),
		EstimatedTimeSeconds: estimatedAnalysisSeconds,
	})
}

func (s *Server) job(c echo.Context) error {
	id, err := pathID(c, "job")
	if err != nil {
		return err
	}
	status, err := s.jobs.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", errCacheUnavailable, err)
	}
	return c.JSON(http.StatusOK, JobResponse{JobID: id, Status: string(status)})
}

// pathID parses the :id path parameter. Malformed ids are a validation error.
func pathID(c echo.Context, kind string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid "+kind+" id").SetInternal(err)
	}
	return id, nil
}
