package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/inbound"
	"github.com/relaydesk/relaydesk/internal/queue"
	"github.com/relaydesk/relaydesk/internal/source"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler receives provider callbacks, verifies the shared secret,
// and hands the payload to the processing pipeline.
type WebhookHandler struct {
	sources *source.Service
	jobs    queue.InboundEnqueuer
	logger  *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, sources *source.Service, jobs queue.InboundEnqueuer) *WebhookHandler {
	return &WebhookHandler{
		sources: sources,
		jobs:    jobs,
		logger:  log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/vk/:sourceID", h.VK)
	e.POST("/webhook/telegram/:sourceID", h.Telegram)
}

// VK handles VK Callback API events. The shared secret arrives in the
// payload's secret field; VK expects the literal body "ok" on success.
func (h *WebhookHandler) VK(c echo.Context) error {
	src, payload, ok, err := h.receive(c)
	if !ok {
		return err
	}
	secret, _ := payload["secret"].(string)
	if !secretMatches(src.SecretKey, secret) {
		return h.reject(c, src.ID, "secret mismatch")
	}
	if ok, err := h.enqueue(c, src.ID, payload); !ok {
		return err
	}
	return c.String(http.StatusOK, "ok")
}

// Telegram handles Bot API updates. The shared secret arrives in the
// X-Telegram-Bot-Api-Secret-Token header.
func (h *WebhookHandler) Telegram(c echo.Context) error {
	src, payload, ok, err := h.receive(c)
	if !ok {
		return err
	}
	secret := c.Request().Header.Get(telegramSecretHeader)
	if !secretMatches(src.SecretKey, secret) {
		return h.reject(c, src.ID, "secret mismatch")
	}
	if ok, err := h.enqueue(c, src.ID, payload); !ok {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// receive parses the route and body and resolves the source. ok=false
// means the error response has already been written.
func (h *WebhookHandler) receive(c echo.Context) (source.Source, map[string]any, bool, error) {
	sourceID, err := strconv.ParseInt(c.Param("sourceID"), 10, 64)
	if err != nil {
		return source.Source{}, nil, false, c.JSON(http.StatusBadRequest,
			ErrorResponse{Error: "invalid source id"})
	}
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return source.Source{}, nil, false, c.JSON(http.StatusBadRequest,
			ErrorResponse{Error: "invalid payload"})
	}
	src, err := h.sources.Get(c.Request().Context(), sourceID)
	if err != nil {
		return source.Source{}, nil, false, c.JSON(http.StatusNotFound,
			ErrorResponse{Error: "source not found"})
	}
	return src, payload, true, nil
}

func (h *WebhookHandler) enqueue(c echo.Context, sourceID int64, payload map[string]any) (bool, error) {
	err := h.jobs.Enqueue(c.Request().Context(), sourceID, payload)
	if err == nil {
		return true, nil
	}
	if inbound.IsNonRetryable(err) {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	}
	h.logger.Error("webhook processing failed",
		slog.Int64("source_id", sourceID), slog.Any("error", err))
	return false, c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "processing failed"})
}

func (h *WebhookHandler) reject(c echo.Context, sourceID int64, reason string) error {
	h.logger.Warn("webhook rejected",
		slog.Int64("source_id", sourceID), slog.String("reason", reason))
	return c.JSON(http.StatusForbidden, ErrorResponse{Error: reason})
}

// secretMatches compares the shared secret in constant time. A source
// without a configured secret accepts any caller.
func secretMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
