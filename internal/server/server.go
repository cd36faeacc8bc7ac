// Package server assembles the echo HTTP server: middleware, JWT guard,
// and handler registration.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/handlers"
)

// publicPrefixes are served without a moderator token. Webhooks carry
// their own shared-secret check; widget routes run on chat-scoped tokens
// validated inside the handler; attachments are capability URLs.
var publicPrefixes = []string{
	"/webhook/",
	"/attachments/",
}

// Widget routes other than the session endpoint stay behind the JWT
// middleware so the chat token claims land in context.
var publicExactPaths = map[string]struct{}{
	"/ping":           {},
	"/health":         {},
	"/auth/login":     {},
	"/widget/session": {},
}

type Server struct {
	echo *echo.Echo
	addr string
}

// CustomValidator adapts go-playground/validator to echo's Validator hook.
type CustomValidator struct {
	validate *validator.Validate
}

func (v *CustomValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New builds the HTTP server with all handlers registered.
func New(log *slog.Logger, addr, jwtSecret string,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	webhookHandler *handlers.WebhookHandler,
	widgetHandler *handlers.WidgetHandler,
	chatsHandler *handlers.ChatsHandler,
	sourcesHandler *handlers.SourcesHandler,
	cannedHandler *handlers.CannedHandler,
	attachmentsHandler *handlers.AttachmentsHandler) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return skipJWT(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if webhookHandler != nil {
		webhookHandler.Register(e)
	}
	if widgetHandler != nil {
		widgetHandler.Register(e)
	}
	if chatsHandler != nil {
		chatsHandler.Register(e)
	}
	if sourcesHandler != nil {
		sourcesHandler.Register(e)
	}
	if cannedHandler != nil {
		cannedHandler.Register(e)
	}
	if attachmentsHandler != nil {
		attachmentsHandler.Register(e)
	}

	return &Server{echo: e, addr: addr}
}

func skipJWT(path string) bool {
	if _, ok := publicExactPaths[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
