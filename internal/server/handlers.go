package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/trender/internal/engine"
	"github.com/mohammad-safakhou/trender/internal/index"
	"github.com/mohammad-safakhou/trender/internal/store"
)

// Generator is what the generate endpoint needs from the generation side.
type Generator interface {
	Generate(ctx context.Context, prompt, sessionID string) (*engine.GenerationResult, error)
}

// HTTPError is the JSON error envelope every failed request returns.
type HTTPError struct {
	Error string `json:"error"`
}

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// GenerateRequest is the payload for POST /api/v1/generate.
type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

// SessionResponse wraps a persisted result with its capture outcomes.
type SessionResponse struct {
	Result   *engine.AggregatedResult `json:"result"`
	Captures []engine.CaptureResult   `json:"captures,omitempty"`
}

// QueryResponse carries ranked hits from a session's full-text index.
type QueryResponse struct {
	SessionID string      `json:"session_id"`
	Hits      []index.Hit `json:"hits"`
}

// ProvidersResponse is the registry snapshot of both provider classes.
type ProvidersResponse struct {
	Search     []engine.EntryStatus `json:"search"`
	Generation []engine.EntryStatus `json:"generation"`
}

// CreateTopicRequest is the payload for POST /api/v1/topics.
type CreateTopicRequest struct {
	Name         string `json:"name"`
	Query        string `json:"query"`
	ScheduleCron string `json:"schedule_cron"`
}

// Handler serves the v1 API group.
type Handler struct {
	Pipeline  engine.SearchRunner
	Generator Generator
	SearchReg *engine.Registry
	GenReg    *engine.Registry
	Store     *store.Store
	Cache     *store.Cache
	Index     *index.Manager
	Logger    *log.Logger
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.POST("/generate", h.generate)
	g.GET("/sessions/:id", h.getSession)
	g.GET("/sessions/:id/query", h.querySession)
	g.GET("/providers", h.providers)
	g.POST("/topics", h.createTopic)
	g.GET("/topics", h.listTopics)
}

// Search
//
//	@Summary		Run a search session
//	@Description	Fans the query out across every available provider and returns the aggregated result
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		SearchRequest	true	"Search payload"
//	@Success		200		{object}	engine.AggregatedResult
//	@Failure		400		{object}	HTTPError
//	@Failure		503		{object}	HTTPError
//	@Router			/api/v1/search [post]
func (h *Handler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	res, err := h.Pipeline.RunSearch(c.Request().Context(), req.Query, req.SessionID)
	if err != nil {
		if errors.Is(err, engine.ErrNoProviders) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no search providers available")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Index != nil {
		if err := h.Index.IndexResult(res); err != nil {
			h.Logger.Printf("session=%s index failed: %v", res.SessionID, err)
		}
	}
	if h.Cache != nil {
		ctx := c.Request().Context()
		if err := h.Cache.SetResult(ctx, res); err != nil {
			h.Logger.Printf("session=%s cache failed: %v", res.SessionID, err)
		}
		_ = h.Cache.PushRecentQuery(ctx, req.Query)
	}
	return c.JSON(http.StatusOK, res)
}

// Generate
//
//	@Summary		Generate an answer with web search tooling
//	@Description	Runs the model fallback chain; searches mid-conversation when the model asks to
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		GenerateRequest	true	"Generate payload"
//	@Success		200		{object}	engine.GenerationResult
//	@Failure		400		{object}	HTTPError
//	@Failure		503		{object}	HTTPError
//	@Router			/api/v1/generate [post]
func (h *Handler) generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt required")
	}
	res, err := h.Generator.Generate(c.Request().Context(), req.Prompt, req.SessionID)
	if err != nil {
		if errors.Is(err, engine.ErrNoProviders) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no generation providers available")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Store != nil {
		if err := h.Store.SaveGeneration(c.Request().Context(), req.Prompt, res); err != nil {
			h.Logger.Printf("session=%s save generation failed: %v", res.SessionID, err)
		}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) getSession(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	var result *engine.AggregatedResult
	if h.Cache != nil {
		if res, ok, err := h.Cache.GetResult(ctx, id); err == nil && ok {
			result = res
		}
	}
	if result == nil {
		if h.Store == nil {
			if h.Cache == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence not configured")
			}
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		res, ok, err := h.Store.GetResult(ctx, id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		result = res
	}

	out := SessionResponse{Result: result}
	if h.Store != nil {
		caps, err := h.Store.ListCaptures(ctx, id)
		if err != nil {
			h.Logger.Printf("session=%s list captures failed: %v", id, err)
		} else {
			out.Captures = caps
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) querySession(c echo.Context) error {
	id := c.Param("id")
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = n
	}
	hits, ok, err := h.Index.Query(id, q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no index for session")
	}
	return c.JSON(http.StatusOK, QueryResponse{SessionID: id, Hits: hits})
}

func (h *Handler) providers(c echo.Context) error {
	return c.JSON(http.StatusOK, ProvidersResponse{
		Search:     h.SearchReg.Snapshot(),
		Generation: h.GenReg.Snapshot(),
	})
}

func (h *Handler) createTopic(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence not configured")
	}
	var req CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and query required")
	}
	if req.ScheduleCron == "" {
		req.ScheduleCron = "@daily"
	}
	userID, _ := c.Get("user_id").(string)
	id, err := h.Store.CreateTopic(c.Request().Context(), userID, req.Name, req.Query, req.ScheduleCron)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) listTopics(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence not configured")
	}
	items, err := h.Store.ListTopics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
