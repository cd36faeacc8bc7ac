// Package auth issues and verifies the HS256 tokens used by moderators and
// widget sessions.
package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	claimSubject     = "sub"
	claimModeratorID = "moderator_id"
	claimType        = "typ"
	claimChatID      = "chat_id"
	claimSourceID    = "source_id"
	widgetTokenType  = "widget_chat"
)

// JWTMiddleware returns a JWT auth middleware configured for HS256 tokens.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
	})
}

// ModeratorIDFromContext extracts the moderator id from JWT claims.
func ModeratorIDFromContext(c echo.Context) (int64, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return 0, err
	}
	if claimString(claims, claimType) == widgetTokenType {
		return 0, echo.NewHTTPError(http.StatusForbidden, "widget token not allowed here")
	}
	if id := claimInt64(claims, claimModeratorID); id != 0 {
		return id, nil
	}
	if id := claimInt64(claims, claimSubject); id != 0 {
		return id, nil
	}
	return 0, echo.NewHTTPError(http.StatusUnauthorized, "moderator id missing")
}

// GenerateToken creates a signed JWT for the moderator.
func GenerateToken(moderatorID int64, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if moderatorID <= 0 {
		return "", time.Time{}, fmt.Errorf("moderator id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimSubject:     strconv.FormatInt(moderatorID, 10),
		claimModeratorID: moderatorID,
		"iat":            now.Unix(),
		"exp":            expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// WidgetToken holds the claims of a widget session token: it scopes the
// visitor to exactly one chat on one source.
type WidgetToken struct {
	ChatID   int64
	SourceID int64
}

// GenerateWidgetToken creates a signed JWT for a widget chat session.
func GenerateWidgetToken(info WidgetToken, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if info.ChatID <= 0 {
		return "", time.Time{}, fmt.Errorf("chat id is required")
	}
	if info.SourceID <= 0 {
		return "", time.Time{}, fmt.Errorf("source id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimType:     widgetTokenType,
		claimChatID:   info.ChatID,
		claimSourceID: info.SourceID,
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// WidgetTokenFromContext extracts and checks the widget session claims.
func WidgetTokenFromContext(c echo.Context) (WidgetToken, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return WidgetToken{}, err
	}
	if claimString(claims, claimType) != widgetTokenType {
		return WidgetToken{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid widget token")
	}
	info := WidgetToken{
		ChatID:   claimInt64(claims, claimChatID),
		SourceID: claimInt64(claims, claimSourceID),
	}
	if info.ChatID == 0 || info.SourceID == 0 {
		return WidgetToken{}, echo.NewHTTPError(http.StatusUnauthorized, "widget token claims missing")
	}
	return info, nil
}

func claimsFromContext(c echo.Context) (jwt.MapClaims, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	default:
		return fmt.Sprint(raw)
	}
}

func claimInt64(claims jwt.MapClaims, key string) int64 {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
