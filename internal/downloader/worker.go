package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/storage"
)

const fetchTimeout = 60 * time.Second

// Attacher appends a downloaded attachment descriptor to a message.
type Attacher interface {
	AppendAttachment(ctx context.Context, messageID int64, att message.Attachment) error
}

// Worker downloads one attachment per job into the blob store.
type Worker struct {
	blobs      storage.BlobStore
	messages   Attacher
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWorker creates a download worker.
func NewWorker(log *slog.Logger, blobs storage.BlobStore, messages Attacher) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		blobs:      blobs,
		messages:   messages,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     log.With(slog.String("service", "downloader")),
	}
}

// Process fetches the job's URL and attaches the stored blob to the
// message. A non-2xx response is logged and dropped without error: the
// message is already persisted and attachment delivery is best-effort.
// Storage and transport failures return an error so the caller's retry
// policy applies.
func (w *Worker) Process(ctx context.Context, job Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.logger.Warn("attachment fetch rejected, dropping",
			slog.Int64("message_id", job.MessageID),
			slog.String("url", job.URL),
			slog.Int("status", resp.StatusCode))
		return nil
	}

	id := uuid.NewString()
	key := strconv.FormatInt(job.MessageID, 10) + "/" + id + "_" + job.FileName
	size, err := w.blobs.Put(ctx, key, resp.Body)
	if err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}

	att := message.Attachment{
		ID:       id,
		Name:     job.FileName,
		MimeType: job.MimeType,
		Size:     size,
		URL:      w.blobs.URL(key),
	}
	if err := w.messages.AppendAttachment(ctx, job.MessageID, att); err != nil {
		return fmt.Errorf("append attachment: %w", err)
	}
	w.logger.Info("attachment stored",
		slog.Int64("message_id", job.MessageID),
		slog.String("attachment_id", id),
		slog.Int64("size", size))
	return nil
}
