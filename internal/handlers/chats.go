package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/messenger"
)

// ChatsHandler is the moderator inbox API.
type ChatsHandler struct {
	chats    *chat.Service
	messages *message.Service
	logger   *slog.Logger
}

func NewChatsHandler(log *slog.Logger, chats *chat.Service, messages *message.Service) *ChatsHandler {
	return &ChatsHandler{
		chats:    chats,
		messages: messages,
		logger:   log.With(slog.String("handler", "chats")),
	}
}

func (h *ChatsHandler) Register(e *echo.Echo) {
	group := e.Group("/chats")
	group.GET("", h.List)
	group.POST("/:id/assign", h.Assign)
	group.POST("/:id/close", h.Close)
	group.GET("/:id/messages", h.Messages)
	group.POST("/:id/messages", h.Send)
	group.POST("/:id/read", h.MarkRead)
}

// List returns the inbox filtered by status, department, and assignee.
func (h *ChatsHandler) List(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	filter := chat.ListFilter{}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := chat.ParseStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.Status = status
	}
	if raw := c.QueryParam("department_id"); raw != "" {
		filter.DepartmentID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := c.QueryParam("assigned_to"); raw != "" {
		filter.AssignedTo, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := c.QueryParam("source_id"); raw != "" {
		filter.SourceID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := c.QueryParam("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	if raw := c.QueryParam("offset"); raw != "" {
		filter.Offset, _ = strconv.Atoi(raw)
	}
	chats, err := h.chats.List(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"chats": chats})
}

type assignRequest struct {
	ModeratorID int64 `json:"moderator_id"`
}

// Assign puts the chat into active status. Without an explicit moderator_id
// the caller takes the chat themselves.
func (h *ChatsHandler) Assign(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	chatID, err := pathID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ModeratorID != 0 {
		moderatorID = req.ModeratorID
	}
	updated, err := h.chats.Assign(c.Request().Context(), chatID, moderatorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Close marks the chat closed.
func (h *ChatsHandler) Close(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	chatID, err := pathID(c)
	if err != nil {
		return err
	}
	updated, err := h.chats.Close(c.Request().Context(), chatID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Messages returns a page of the chat's history.
func (h *ChatsHandler) Messages(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	chatID, err := pathID(c)
	if err != nil {
		return err
	}
	filter := message.ListFilter{ChatID: chatID}
	if raw := c.QueryParam("before_id"); raw != "" {
		filter.BeforeID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := c.QueryParam("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	msgs, err := h.messages.ListByChat(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

type sendRequest struct {
	Text            string `json:"text" validate:"required"`
	ClientMessageID string `json:"client_message_id"`
}

// Send persists a moderator reply and relays it out through the chat's
// channel. A delivery failure still returns the persisted message so the
// operator can retry the external send knowingly.
func (h *ChatsHandler) Send(c echo.Context) error {
	moderatorID, err := auth.ModeratorIDFromContext(c)
	if err != nil {
		return err
	}
	chatID, err := pathID(c)
	if err != nil {
		return err
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	stored, created, err := h.messages.Send(c.Request().Context(), message.SendInput{
		ChatID:          chatID,
		SenderID:        moderatorID,
		Sender:          message.SenderModerator,
		Text:            req.Text,
		ClientMessageID: req.ClientMessageID,
	})
	var delivery *messenger.DeliveryError
	if errors.As(err, &delivery) {
		h.logger.Warn("outbound delivery failed",
			slog.Int64("chat_id", chatID),
			slog.String("provider", delivery.Provider),
			slog.Any("error", delivery.Err))
		return c.JSON(http.StatusBadGateway, map[string]any{
			"message":   stored,
			"created":   created,
			"delivered": false,
			"error":     delivery.Error(),
		})
	}
	if err != nil {
		return httpError(err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"message": stored,
		"created": created,
	})
}

// MarkRead flags the chat's client messages as read.
func (h *ChatsHandler) MarkRead(c echo.Context) error {
	if _, err := auth.ModeratorIDFromContext(c); err != nil {
		return err
	}
	chatID, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.messages.MarkRead(c.Request().Context(), chatID, message.SenderClient); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
