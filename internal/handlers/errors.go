// Package handlers holds the echo HTTP handlers: webhook entrypoints, the
// widget API, the moderator inbox, auth, and admin source management.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/canned"
	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/department"
	"github.com/relaydesk/relaydesk/internal/inbound"
	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/moderator"
	"github.com/relaydesk/relaydesk/internal/source"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	var missing *inbound.MissingFieldError
	switch {
	case errors.Is(err, source.ErrNotFound),
		errors.Is(err, department.ErrNotFound),
		errors.Is(err, chat.ErrNotFound),
		errors.Is(err, message.ErrNotFound),
		errors.Is(err, moderator.ErrNotFound),
		errors.Is(err, canned.ErrNotFound),
		errors.Is(err, inbound.ErrSourceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, inbound.ErrInvalidPayload),
		errors.Is(err, inbound.ErrNoDepartment),
		errors.As(err, &missing):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, moderator.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		// Internal details stay in the log; the client gets a generic body.
		slog.Error("unhandled error", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
