package http

import (
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth reports whether the catalog answers.
func (s *Server) handleHealth(c echo.Context) error {
	if err := s.services.Catalog().Ping(c.Request().Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Catalog: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Catalog: "ok"})
}

// handleSearch runs the tiered search over one collection, composites by default.
func (s *Server) handleSearch(c echo.Context) error {
	collection := strings.TrimSpace(c.QueryParam("collection"))
	if collection == "" {
		collection = mirror.Composites
	}
	res, err := s.services.Search().Search(c.Request().Context(), c.QueryParam("q"), collection)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleSimilarMorphemes returns the nearest morphemes by embedding only.
// Unlike search, a similarity failure is an error response.
func (s *Server) handleSimilarMorphemes(c echo.Context) error {
	res, err := s.services.Search().Semantic(c.Request().Context(), c.QueryParam("q"), mirror.Morphemes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSubmitFieldRequest(c echo.Context) error {
	var req FieldRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := s.services.Standards().SubmitFieldRequest(c.Request().Context(), req.Name, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}
