package message

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/event"
	"github.com/relaydesk/relaydesk/internal/messenger"
	"github.com/relaydesk/relaydesk/internal/source"
)

// clientMessageIDPrefix namespaces widget/moderator client-chosen ids in the
// external_message_id column, away from provider-assigned ids.
const clientMessageIDPrefix = "client:"

// SourceResolver looks up a message's source for outbound delivery.
type SourceResolver interface {
	Get(ctx context.Context, id int64) (source.Source, error)
}

// ProviderFactory builds the channel provider for a source.
type ProviderFactory interface {
	ForSource(src source.Source) (messenger.Provider, error)
}

// Service implements message creation with dedup and the moderator send
// path that relays a reply out through the chat's channel.
type Service struct {
	repo      Repository
	chats     *chat.Service
	sources   SourceResolver
	providers ProviderFactory
	events    event.Publisher
	logger    *slog.Logger

	// attachLocks serialize payload read-modify-write per message id so
	// concurrent download workers never drop each other's attachments.
	// Striped by id to keep the set bounded.
	attachLocks [attachStripes]sync.Mutex
}

const attachStripes = 64

// NewService creates a message service.
func NewService(log *slog.Logger, repo Repository, chats *chat.Service,
	sources SourceResolver, providers ProviderFactory, events event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		chats:     chats,
		sources:   sources,
		providers: providers,
		events:    events,
		logger:    log.With(slog.String("service", "message")),
	}
}

// Get returns the message with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Message, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByChat returns a page of the chat's history in chronological order.
func (s *Service) ListByChat(ctx context.Context, filter ListFilter) ([]Message, error) {
	return s.repo.ListByChat(ctx, filter)
}

// Create persists a message, deduplicating on the provider message id. On a
// dedup hit the stored message comes back with created=false and no event
// fires; otherwise the chat activity timestamp bumps and a chat.message.created
// event goes out.
func (s *Service) Create(ctx context.Context, input CreateInput) (Message, bool, error) {
	stored, created, err := s.repo.Insert(ctx, input)
	if err != nil {
		return Message{}, false, err
	}
	if !created {
		s.logger.Info("duplicate message skipped",
			slog.Int64("chat_id", input.ChatID),
			slog.String("external_message_id", input.ExternalMessageID))
		return stored, false, nil
	}
	if err := s.chats.Touch(ctx, stored.ChatID); err != nil {
		s.logger.Warn("touch chat failed",
			slog.Int64("chat_id", stored.ChatID), slog.Any("error", err))
	}
	if s.events != nil {
		s.events.Publish(event.NewChatMessageEvent(stored.ChatID, stored.ID, stored.Text))
	}
	return stored, true, nil
}

// SendInput carries a moderator or system reply.
type SendInput struct {
	ChatID   int64
	SenderID int64
	Sender   SenderType
	Text     string
	// ClientMessageID is an optional caller-chosen id making the send
	// idempotent across retries.
	ClientMessageID string
}

// Send persists an outbound reply and relays it through the chat's channel
// provider. A repeated ClientMessageID returns the stored message without
// re-sending. A missing source means the channel was deleted; the message
// stays recorded and delivery is skipped. Channel API failures come back as
// *messenger.DeliveryError with the message already persisted.
func (s *Service) Send(ctx context.Context, input SendInput) (Message, bool, error) {
	if input.Sender == "" {
		input.Sender = SenderModerator
	}
	externalID := ""
	if input.ClientMessageID != "" {
		externalID = clientMessageIDPrefix + input.ClientMessageID
	}
	stored, created, err := s.Create(ctx, CreateInput{
		ChatID:            input.ChatID,
		SenderID:          input.SenderID,
		Sender:            input.Sender,
		Text:              input.Text,
		ExternalMessageID: externalID,
	})
	if err != nil || !created {
		return stored, created, err
	}

	c, err := s.chats.Get(ctx, input.ChatID)
	if err != nil {
		return stored, true, err
	}
	src, err := s.sources.Get(ctx, c.SourceID)
	if errors.Is(err, source.ErrNotFound) {
		s.logger.Warn("source gone, delivery skipped",
			slog.Int64("chat_id", c.ID), slog.Int64("source_id", c.SourceID))
		return stored, true, nil
	}
	if err != nil {
		return stored, true, err
	}
	provider, err := s.providers.ForSource(src)
	if err != nil {
		return stored, true, err
	}
	err = provider.SendMessage(ctx, c.ExternalUserID, stored.Text, map[string]any{
		"message_id": strconv.FormatInt(stored.ID, 10),
	})
	if err != nil {
		return stored, true, err
	}
	return stored, true, nil
}

// AppendAttachment adds an attachment descriptor to the message payload.
// Appends for the same message are serialized.
func (s *Service) AppendAttachment(ctx context.Context, messageID int64, att Attachment) error {
	mu := &s.attachLocks[messageID%attachStripes]
	mu.Lock()
	defer mu.Unlock()

	m, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	payload := m.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	list, _ := payload["attachments"].([]any)
	payload["attachments"] = append(list, map[string]any{
		"id":        att.ID,
		"name":      att.Name,
		"mime_type": att.MimeType,
		"size":      att.Size,
		"url":       att.URL,
	})
	return s.repo.UpdatePayload(ctx, messageID, payload)
}

// MarkRead flags the chat's messages from the given sender as read.
func (s *Service) MarkRead(ctx context.Context, chatID int64, sender SenderType) error {
	return s.repo.MarkRead(ctx, chatID, sender)
}
