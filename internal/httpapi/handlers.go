package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/dashboard"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type statusResponse struct {
	Loading        bool   `json:"loading"`
	Error          string `json:"error,omitempty"`
	MemoryEntries  int    `json:"memory_entries"`
	DurableEntries int    `json:"durable_entries"`
}

type filtersResponse struct {
	Filters dashboard.FilterState `json:"filters"`
	Changed bool                  `json:"changed"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getDataset(c echo.Context) error {
	params := s.requestParams(c)
	data, err := s.deps.Orchestrator.FetchDataset(c.Request().Context(), c.Param("service"), c.Param("operation"), params)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) listStores(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Stores.Load(c.Request().Context()))
}

func (s *Server) getStoreData(c echo.Context) error {
	store, err := url.PathUnescape(c.Param("store"))
	if err != nil {
		return s.fail(c, cache.NewInvalidParamError("store", "not a valid path segment"))
	}
	params := s.requestParams(c)
	data, err := s.deps.Orchestrator.FetchStoreData(c.Request().Context(), store, c.Param("endpoint"), params)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) getCached(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return s.fail(c, cache.NewInvalidParamError("key", "not a valid path segment"))
	}
	data, ok := s.deps.Orchestrator.GetCachedAPIData(c.Request().Context(), key)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no cached data for key"})
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) invalidate(c echo.Context) error {
	pattern := strings.TrimSpace(c.QueryParam("pattern"))
	if pattern == "" {
		return s.fail(c, cache.NewInvalidParamError("pattern", "must not be empty"))
	}
	removed := s.deps.Orchestrator.InvalidateCache(c.Request().Context(), pattern)
	return c.JSON(http.StatusOK, map[string]any{"pattern": pattern, "removed": removed})
}

func (s *Server) clear(c echo.Context) error {
	s.deps.Orchestrator.ClearAllCache(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getFilters(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Filters.State())
}

func (s *Server) updateFilters(c echo.Context) error {
	var patch dashboard.FilterPatch
	if err := c.Bind(&patch); err != nil {
		return s.fail(c, cache.NewInvalidParamError("body", "must be a filter patch"))
	}
	if err := patch.Validate(); err != nil {
		return s.fail(c, err)
	}
	state, changed := s.deps.Filters.Update(c.Request().Context(), patch)
	return c.JSON(http.StatusOK, filtersResponse{Filters: state, Changed: changed})
}

func (s *Server) status(c echo.Context) error {
	res := statusResponse{Loading: s.deps.Orchestrator.Loading()}
	if err := s.deps.Orchestrator.Err(); err != nil {
		res.Error = err.Error()
	}
	if s.deps.Stats != nil {
		res.MemoryEntries, res.DurableEntries = s.deps.Stats.Stats()
	}
	return c.JSON(http.StatusOK, res)
}

// requestParams starts from the current filter selection and lets query
// parameters override it. Repeated query values become lists.
func (s *Server) requestParams(c echo.Context) cache.Params {
	params := cache.Params{}
	if s.deps.Filters != nil {
		params = s.deps.Filters.State().Params()
	}
	for name, values := range c.QueryParams() {
		switch len(values) {
		case 0:
		case 1:
			params[name] = values[0]
		default:
			params[name] = append([]string(nil), values...)
		}
	}
	return params
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	log := s.logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Warn("request failed")
	} else {
		log.Debug("request rejected")
	}
	return c.JSON(status, errorResponse{Error: err.Error(), Code: cache.TextCode(err)})
}

func statusFor(err error) int {
	switch {
	case cache.IsValidationError(err):
		return http.StatusBadRequest
	case cache.IsLogicError(err):
		if code := cache.StatusCode(err); code >= 400 && code <= 599 {
			return code
		}
		return http.StatusBadGateway
	case cache.IsTransportError(err), cache.IsMalformedResponse(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
