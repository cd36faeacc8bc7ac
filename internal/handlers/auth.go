package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/moderator"
)

type AuthHandler struct {
	moderators   *moderator.Service
	jwtSecret    string
	jwtExpiresIn time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(log *slog.Logger, moderators *moderator.Service, jwtSecret string, jwtExpiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		moderators:   moderators,
		jwtSecret:    jwtSecret,
		jwtExpiresIn: jwtExpiresIn,
		logger:       log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Moderator moderator.Moderator `json:"moderator"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mod, err := h.moderators.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}
	token, expiresAt, err := auth.GenerateToken(mod.ID, h.jwtSecret, h.jwtExpiresIn)
	if err != nil {
		return httpError(err)
	}
	h.logger.Info("moderator logged in", slog.Int64("moderator_id", mod.ID))
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, Moderator: mod})
}

// Refresh issues a fresh token for an already-authenticated moderator.
func (h *AuthHandler) Refresh(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	mod, err := h.moderators.Get(c.Request().Context(), moderatorID)
	if err != nil {
		return httpError(err)
	}
	token, expiresAt, err := auth.GenerateToken(mod.ID, h.jwtSecret, h.jwtExpiresIn)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, Moderator: mod})
}
