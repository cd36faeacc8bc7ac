package inbound

import (
	"context"
	"errors"
	"log/slog"

	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/department"
	"github.com/relaydesk/relaydesk/internal/downloader"
	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/messenger"
	"github.com/relaydesk/relaydesk/internal/source"
)

// SourceStore resolves webhook sources.
type SourceStore interface {
	Get(ctx context.Context, id int64) (source.Source, error)
}

// DepartmentStore picks the source's default queue.
type DepartmentStore interface {
	FirstActive(ctx context.Context, sourceID int64) (department.Department, error)
}

// ChatStore is the chat surface the orchestrator needs.
type ChatStore interface {
	FindBySourceAndExternalUser(ctx context.Context, sourceID int64, externalUserID string) (chat.Chat, error)
	Create(ctx context.Context, input chat.CreateInput) (chat.Chat, error)
	AbsorbInbound(ctx context.Context, c chat.Chat, metadata map[string]any) (chat.Chat, error)
}

// MessageStore is the message surface the orchestrator needs.
type MessageStore interface {
	Create(ctx context.Context, input message.CreateInput) (message.Message, bool, error)
}

// ProviderFactory builds the channel provider for shape validation.
type ProviderFactory interface {
	ForSource(src source.Source) (messenger.Provider, error)
}

// DownloadScheduler dispatches attachment fetches for async processing.
type DownloadScheduler interface {
	Schedule(ctx context.Context, job downloader.Job) error
}

// Processor runs the inbound webhook pipeline. It performs no internal
// concurrency; many invocations may run in parallel. Concurrent first
// contact for the same (source, external user) is resolved by the chats
// table's uniqueness constraint, duplicate deliveries of the same provider
// message by the messages table's.
type Processor struct {
	sources     SourceStore
	departments DepartmentStore
	chats       ChatStore
	messages    MessageStore
	providers   ProviderFactory
	downloads   DownloadScheduler
	logger      *slog.Logger
}

// NewProcessor creates the webhook processor.
func NewProcessor(log *slog.Logger, sources SourceStore, departments DepartmentStore,
	chats ChatStore, messages MessageStore, providers ProviderFactory,
	downloads DownloadScheduler) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		sources:     sources,
		departments: departments,
		chats:       chats,
		messages:    messages,
		providers:   providers,
		downloads:   downloads,
		logger:      log.With(slog.String("service", "inbound")),
	}
}

// Result reports what a processed webhook produced.
type Result struct {
	Chat    chat.Chat
	Message message.Message
	// Created is false when the message deduplicated against an earlier
	// delivery; no event fired and no downloads were scheduled.
	Created bool
}

// Process runs the pipeline: validate shape, resolve source, normalize
// fields, find-or-create the chat, create-or-dedup the message, and
// schedule attachment downloads. Every gate failure aborts the whole
// webhook with no partial writes.
func (p *Processor) Process(ctx context.Context, sourceID int64, payload map[string]any) (Result, error) {
	src, err := p.sources.Get(ctx, sourceID)
	if errors.Is(err, source.ErrNotFound) {
		return Result{}, ErrSourceNotFound
	}
	if err != nil {
		return Result{}, err
	}

	provider, err := p.providers.ForSource(src)
	if err != nil {
		return Result{}, err
	}
	if !provider.ValidateWebhook(payload) {
		return Result{}, ErrInvalidPayload
	}

	externalUserID, err := ExternalUserID(payload)
	if err != nil {
		return Result{}, err
	}
	departmentID := DepartmentID(payload)
	if departmentID == 0 {
		dept, err := p.departments.FirstActive(ctx, src.ID)
		if errors.Is(err, department.ErrNotFound) {
			return Result{}, ErrNoDepartment
		}
		if err != nil {
			return Result{}, err
		}
		departmentID = dept.ID
	}
	text := Text(payload)
	metadata := UserMetadata(payload)
	externalMessageID := ExternalMessageID(payload)

	c, err := p.chats.FindBySourceAndExternalUser(ctx, src.ID, externalUserID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c, err = p.chats.Create(ctx, chat.CreateInput{
			SourceID:       src.ID,
			DepartmentID:   departmentID,
			ExternalUserID: externalUserID,
			UserMetadata:   metadata,
		})
		if err != nil {
			return Result{}, err
		}
	case err != nil:
		return Result{}, err
	default:
		c, err = p.chats.AbsorbInbound(ctx, c, metadata)
		if err != nil {
			return Result{}, err
		}
	}

	msg, created, err := p.messages.Create(ctx, message.CreateInput{
		ChatID:            c.ID,
		Sender:            message.SenderClient,
		Text:              text,
		ExternalMessageID: externalMessageID,
		Payload:           payload,
	})
	if err != nil {
		return Result{}, err
	}
	if !created {
		return Result{Chat: c, Message: msg, Created: false}, nil
	}

	for _, att := range ExtractAttachments(payload) {
		job := downloader.Job{
			MessageID: msg.ID,
			URL:       att.URL,
			FileName:  att.FileName,
			MimeType:  att.MimeType,
		}
		if err := p.downloads.Schedule(ctx, job); err != nil {
			// The message is already persisted; a lost download is
			// best-effort, same as a broken attachment link.
			p.logger.Error("schedule attachment download failed",
				slog.Int64("message_id", msg.ID),
				slog.String("url", att.URL),
				slog.Any("error", err))
		}
	}

	p.logger.Info("webhook processed",
		slog.Int64("source_id", src.ID),
		slog.Int64("chat_id", c.ID),
		slog.Int64("message_id", msg.ID))
	return Result{Chat: c, Message: msg, Created: true}, nil
}
