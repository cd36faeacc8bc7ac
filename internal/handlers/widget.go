package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/department"
	"github.com/relaydesk/relaydesk/internal/inbound"
	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/source"
)

// widgetTokenTTL bounds a visitor session; the widget silently re-runs the
// session call when the token expires.
const widgetTokenTTL = 24 * time.Hour

// WidgetHandler is the embeddable chat widget API. Visitors authenticate
// with a chat-scoped token issued by the session endpoint.
type WidgetHandler struct {
	sources     *source.Service
	departments *department.Service
	chats       *chat.Service
	messages    *message.Service
	processor   *inbound.Processor
	jwtSecret   string
	logger      *slog.Logger
}

func NewWidgetHandler(log *slog.Logger, sources *source.Service, departments *department.Service,
	chats *chat.Service, messages *message.Service, processor *inbound.Processor, jwtSecret string) *WidgetHandler {
	return &WidgetHandler{
		sources:     sources,
		departments: departments,
		chats:       chats,
		messages:    messages,
		processor:   processor,
		jwtSecret:   jwtSecret,
		logger:      log.With(slog.String("handler", "widget")),
	}
}

func (h *WidgetHandler) Register(e *echo.Echo) {
	e.POST("/widget/session", h.Session)
	e.GET("/widget/messages", h.Messages)
	e.POST("/widget/messages", h.Send)
	e.POST("/widget/read", h.MarkRead)
}

type widgetSessionRequest struct {
	Identifier string         `json:"identifier" validate:"required"`
	VisitorID  string         `json:"visitor_id"`
	Department string         `json:"department"`
	Metadata   map[string]any `json:"metadata"`
}

type widgetSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ChatID    int64     `json:"chat_id"`
	VisitorID string    `json:"visitor_id"`
}

// Session finds or creates the visitor's chat on a web source and issues a
// chat-scoped token. A blank visitor id starts a fresh conversation.
func (h *WidgetHandler) Session(c echo.Context) error {
	var req widgetSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	src, err := h.sources.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		return httpError(err)
	}
	if src.Type != source.TypeWeb {
		return echo.NewHTTPError(http.StatusBadRequest, "not a web source")
	}

	visitorID := req.VisitorID
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	conversation, err := h.chats.FindBySourceAndExternalUser(ctx, src.ID, visitorID)
	if errors.Is(err, chat.ErrNotFound) {
		dept, err := h.departments.ResolveSlug(ctx, src.ID, req.Department)
		if err != nil {
			return httpError(err)
		}
		conversation, err = h.chats.Create(ctx, chat.CreateInput{
			SourceID:       src.ID,
			DepartmentID:   dept.ID,
			ExternalUserID: visitorID,
			UserMetadata:   req.Metadata,
		})
		if err != nil {
			return httpError(err)
		}
	} else if err != nil {
		return httpError(err)
	}

	token, expiresAt, err := auth.GenerateWidgetToken(auth.WidgetToken{
		ChatID:   conversation.ID,
		SourceID: src.ID,
	}, h.jwtSecret, widgetTokenTTL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, widgetSessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ChatID:    conversation.ID,
		VisitorID: visitorID,
	})
}

// Messages returns a page of the visitor's chat history.
func (h *WidgetHandler) Messages(c echo.Context) error {
	token, err := auth.WidgetTokenFromContext(c)
	if err != nil {
		return err
	}
	filter := message.ListFilter{ChatID: token.ChatID}
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

type widgetSendRequest struct {
	Text            string `json:"text" validate:"required"`
	ClientMessageID string `json:"client_message_id"`
}

// Send posts a visitor message through the same pipeline webhooks take:
// metadata merge, reopen-on-closed, dedup on the optional client message
// id, and the chat.message.created event.
func (h *WidgetHandler) Send(c echo.Context) error {
	token, err := auth.WidgetTokenFromContext(c)
	if err != nil {
		return err
	}
	var req widgetSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	conversation, err := h.chats.Get(ctx, token.ChatID)
	if err != nil {
		return httpError(err)
	}
	payload := map[string]any{
		"external_user_id": conversation.ExternalUserID,
		"text":             req.Text,
	}
	if req.ClientMessageID != "" {
		payload["message_id"] = "client:" + req.ClientMessageID
	}
	result, err := h.processor.Process(ctx, token.SourceID, payload)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"message": result.Message,
		"created": result.Created,
	})
}

// MarkRead flags moderator replies in the visitor's chat as read.
func (h *WidgetHandler) MarkRead(c echo.Context) error {
	token, err := auth.WidgetTokenFromContext(c)
	if err != nil {
		return err
	}
	if err := h.messages.MarkRead(c.Request().Context(), token.ChatID, message.SenderModerator); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
