package http

import (
	"net/http"
	"strconv"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/logging"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/standards"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondMutation writes a mutation outcome. A partial outcome is still a
// success for the caller: the catalog has the change.
func (s *Server) respondMutation(c echo.Context, code int, res standards.MutationResult, resp MutationResponse) error {
	if res.Status() == mirror.StatusPartial {
		c.Response().Header().Set(HeaderMirrorSync, string(mirror.StatusPartial))
		fields := append(logging.ContextFields(c.Request().Context()),
			zap.String("path", c.Path()),
			zap.Error(res.Err),
		)
		s.logger.Warn("catalog mutation not mirrored", fields...)
	}
	return c.JSON(code, resp)
}

func (s *Server) handleSuggest(c echo.Context) error {
	res, err := s.services.Resolver().Resolve(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListMorphemes(c echo.Context) error {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", standards.DefaultPageLimit)
	if err != nil {
		return err
	}
	page, err := s.services.Standards().ListMorphemes(c.Request().Context(), offset, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetMorpheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, err := s.services.Standards().GetMorpheme(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleCreateMorpheme(c echo.Context) error {
	var req MorphemeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := req.morpheme(0)
	res, err := s.services.Standards().CreateMorpheme(c.Request().Context(), m)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusCreated, res, mutationResponse(res, m))
}

func (s *Server) handleCreateMorphemes(c echo.Context) error {
	var reqs []MorphemeRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: expected a JSON array of morphemes")
	}
	ms := make([]catalog.Morpheme, len(reqs))
	for i, r := range reqs {
		ms[i] = *r.morpheme(0)
	}
	res, err := s.services.Standards().CreateMorphemes(c.Request().Context(), ms)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusCreated, res, mutationResponse(res, ms))
}

func (s *Server) handleUpdateMorpheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req MorphemeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := req.morpheme(id)
	res, err := s.services.Standards().UpdateMorpheme(c.Request().Context(), m)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusOK, res, mutationResponse(res, m))
}

func (s *Server) handleDeleteMorpheme(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := s.services.Standards().DeleteMorpheme(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusOK, res, mutationResponse(res, nil))
}

func (s *Server) handleClearMorphemes(c echo.Context) error {
	res, n, err := s.services.Standards().ClearMorphemes(c.Request().Context())
	if err != nil {
		return err
	}
	resp := mutationResponse(res, nil)
	resp.Deleted = &n
	return s.respondMutation(c, http.StatusOK, res, resp)
}

func (s *Server) handleListComposites(c echo.Context) error {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", standards.DefaultPageLimit)
	if err != nil {
		return err
	}
	page, err := s.services.Standards().ListComposites(c.Request().Context(), offset, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// handleGetComposite returns the composite with its morphemes.
func (s *Server) handleGetComposite(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	details, err := s.services.Standards().CompositeDetails(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, details)
}

func (s *Server) handleCreateComposite(c echo.Context) error {
	var req CompositeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ce := req.composite(0)
	res, err := s.services.Standards().CreateComposite(c.Request().Context(), ce)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusCreated, res, mutationResponse(res, ce))
}

func (s *Server) handleUpdateComposite(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req CompositeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ce := req.composite(id)
	res, err := s.services.Standards().UpdateComposite(c.Request().Context(), ce)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusOK, res, mutationResponse(res, ce))
}

func (s *Server) handleDeleteComposite(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := s.services.Standards().DeleteComposite(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.respondMutation(c, http.StatusOK, res, mutationResponse(res, nil))
}

func (s *Server) handleClearComposites(c echo.Context) error {
	res, n, err := s.services.Standards().ClearComposites(c.Request().Context())
	if err != nil {
		return err
	}
	resp := mutationResponse(res, nil)
	resp.Deleted = &n
	return s.respondMutation(c, http.StatusOK, res, resp)
}

func (s *Server) handleResync(c echo.Context) error {
	collection := c.Param("collection")
	n, err := s.services.Standards().Resync(c.Request().Context(), collection)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ResyncResponse{Collection: collection, Synced: n})
}

// handleSync re-mirrors one row. A failed catalog read is an error; a
// partial result is reported like any other partial mutation.
func (s *Server) handleSync(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res := s.services.Standards().Sync(c.Request().Context(), c.Param("collection"), id)
	switch res.Status {
	case mirror.StatusFailed:
		return res.Err
	case mirror.StatusPartial:
		c.Response().Header().Set(HeaderMirrorSync, string(mirror.StatusPartial))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListFieldRequests(c echo.Context) error {
	limit, err := queryInt(c, "limit", standards.DefaultPageLimit)
	if err != nil {
		return err
	}
	openOnly := false
	if raw := c.QueryParam("open"); raw != "" {
		if openOnly, err = strconv.ParseBool(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "open must be a boolean")
		}
	}
	rs, err := s.services.Standards().ListFieldRequests(c.Request().Context(), openOnly, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rs)
}

func (s *Server) handleCountFieldRequests(c echo.Context) error {
	n, err := s.services.Standards().CountOpenFieldRequests(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

func (s *Server) handleCompleteFieldRequest(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.services.Standards().CompleteFieldRequest(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
