package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/canned"
)

// CannedHandler serves the moderator picker for prepared replies and
// their admin CRUD.
type CannedHandler struct {
	responses *canned.Service
	logger    *slog.Logger
}

func NewCannedHandler(log *slog.Logger, responses *canned.Service) *CannedHandler {
	return &CannedHandler{
		responses: responses,
		logger:    log.With(slog.String("handler", "canned")),
	}
}

func (h *CannedHandler) Register(e *echo.Echo) {
	group := e.Group("/canned-responses")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

// List returns the active responses, ordered by code. A source_id
// filter keeps that source's responses plus the global ones; q is a
// substring search over code, title and text.
func (h *CannedHandler) List(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	filter := canned.ListFilter{Query: c.QueryParam("q")}
	if raw := c.QueryParam("source_id"); raw != "" {
		filter.SourceID, _ = strconv.ParseInt(raw, 10, 64)
	}
	responses, err := h.responses.ListActive(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"canned_responses": responses})
}

func (h *CannedHandler) Get(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	resp, err := h.responses.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CannedHandler) Create(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	var input canned.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.responses.Create(c.Request().Context(), input)
	if err != nil {
		return httpError(err)
	}
	h.logger.Info("canned response created",
		slog.Int64("canned_response_id", created.ID),
		slog.Int64("moderator_id", moderatorID))
	return c.JSON(http.StatusCreated, created)
}

func (h *CannedHandler) Update(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input canned.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.responses.Update(c.Request().Context(), id, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *CannedHandler) Delete(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.responses.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	h.logger.Info("canned response deleted",
		slog.Int64("canned_response_id", id),
		slog.Int64("moderator_id", moderatorID))
	return c.NoContent(http.StatusNoContent)
}
