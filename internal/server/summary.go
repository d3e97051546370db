package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/tosclarity/internal/clarity"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
)

func (s *Server) summary(c echo.Context) error {
	id, err := pathID(c, "summary")
	if err != nil {
		return err
	}
	resp, err := s.assembler.Summary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// compare echoes the requested ids back. Side-by-side comparison is not
// implemented yet.
func (s *Server) compare(c echo.Context) error {
	var ids []uuid.UUID
	if err := json.NewDecoder(c.Request().Body).Decode(&ids); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "body must be a JSON array of summary ids").SetInternal(err)
	}
	// null decodes to a nil slice; only an actual array is accepted.
	if ids == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "body must be a JSON array of summary ids")
	}
	return c.JSON(http.StatusOK, CompareResponse{
		Message:    "Comparison feature coming soon",
		SummaryIDs: ids,
	})
}

func (s *Server) document(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	resp, err := s.assembler.Document(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) documentSummaries(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	resp, err := s.assembler.Document(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Summaries)
}

// deleteDocument removes a document and, by cascade, all of its summaries.
func (s *Server) deleteDocument(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %w", clarity.ErrDocumentNotFound, err)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
