package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/department"
	"github.com/relaydesk/relaydesk/internal/source"
)

// SourcesHandler is the admin API for channel sources and their
// departments.
type SourcesHandler struct {
	sources     *source.Service
	departments *department.Service
	logger      *slog.Logger
}

func NewSourcesHandler(log *slog.Logger, sources *source.Service, departments *department.Service) *SourcesHandler {
	return &SourcesHandler{
		sources:     sources,
		departments: departments,
		logger:      log.With(slog.String("handler", "sources")),
	}
}

func (h *SourcesHandler) Register(e *echo.Echo) {
	group := e.Group("/sources")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.GET("/:id/departments", h.ListDepartments)
	group.POST("/:id/departments", h.CreateDepartment)

	e.PUT("/departments/:id", h.UpdateDepartment)
	e.DELETE("/departments/:id", h.DeleteDepartment)
}

func (h *SourcesHandler) List(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	sources, err := h.sources.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sources": sources})
}

func (h *SourcesHandler) Get(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	src, err := h.sources.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, src)
}

func (h *SourcesHandler) Create(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	var input source.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.sources.Create(c.Request().Context(), input)
	if err != nil {
		return httpError(err)
	}
	h.logger.Info("source created",
		slog.Int64("source_id", created.ID),
		slog.Int64("moderator_id", moderatorID))
	return c.JSON(http.StatusCreated, created)
}

func (h *SourcesHandler) Update(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input source.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.sources.Update(c.Request().Context(), id, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *SourcesHandler) Delete(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.sources.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	h.logger.Info("source deleted",
		slog.Int64("source_id", id),
		slog.Int64("moderator_id", moderatorID))
	return c.NoContent(http.StatusNoContent)
}

func (h *SourcesHandler) ListDepartments(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	departments, err := h.departments.ListBySource(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"departments": departments})
}

func (h *SourcesHandler) CreateDepartment(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input department.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	input.SourceID = id
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.departments.Create(c.Request().Context(), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *SourcesHandler) UpdateDepartment(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input department.UpsertInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.departments.Update(c.Request().Context(), id, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *SourcesHandler) DeleteDepartment(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.departments.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
