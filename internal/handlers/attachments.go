package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relaydesk/relaydesk/internal/storage"
)

// AttachmentsHandler serves stored attachment blobs. Keys embed a random
// uuid, so possession of the URL is the access grant, same as a CDN link.
type AttachmentsHandler struct {
	blobs  storage.BlobStore
	logger *slog.Logger
}

func NewAttachmentsHandler(log *slog.Logger, blobs storage.BlobStore) *AttachmentsHandler {
	return &AttachmentsHandler{
		blobs:  blobs,
		logger: log.With(slog.String("handler", "attachments")),
	}
}

func (h *AttachmentsHandler) Register(e *echo.Echo) {
	e.GET("/attachments/:message/:file", h.Serve)
}

func (h *AttachmentsHandler) Serve(c echo.Context) error {
	key := c.Param("message") + "/" + c.Param("file")
	blob, err := h.blobs.Open(c.Request().Context(), key)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	defer blob.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", blob)
}
