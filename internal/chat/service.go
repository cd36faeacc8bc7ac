package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaydesk/relaydesk/internal/event"
)

// Service implements the chat lifecycle: creation on first contact,
// moderator assignment, closing, and reopen-on-inbound.
type Service struct {
	repo   Repository
	events event.Publisher
	logger *slog.Logger
}

// NewService creates a chat service.
func NewService(log *slog.Logger, repo Repository, events event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		events: events,
		logger: log.With(slog.String("service", "chat")),
	}
}

// Get returns the chat with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Chat, error) {
	return s.repo.FindByID(ctx, id)
}

// FindBySourceAndExternalUser returns the chat for the (source, external
// user) pair, or ErrNotFound.
func (s *Service) FindBySourceAndExternalUser(ctx context.Context, sourceID int64, externalUserID string) (Chat, error) {
	return s.repo.FindBySourceAndExternalUser(ctx, sourceID, externalUserID)
}

// Create inserts a new chat with status new and no assignee. Callers are
// expected to have checked for an existing chat first.
func (s *Service) Create(ctx context.Context, input CreateInput) (Chat, error) {
	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return Chat{}, err
	}
	s.logger.Info("chat created",
		slog.Int64("chat_id", created.ID),
		slog.Int64("source_id", created.SourceID),
		slog.String("external_user_id", created.ExternalUserID))
	return created, nil
}

// List returns chats matching the filter, most recently active first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Chat, error) {
	return s.repo.List(ctx, filter)
}

// Assign puts the chat into active status and records the moderator.
// Reassignment is allowed; the last writer wins.
func (s *Service) Assign(ctx context.Context, chatID, userID int64) (Chat, error) {
	c, err := s.repo.FindByID(ctx, chatID)
	if err != nil {
		return Chat{}, err
	}
	c.Status = StatusActive
	c.AssignedTo = userID
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return Chat{}, err
	}
	if s.events != nil {
		s.events.Publish(event.ChatAssignedEvent(updated.ID, userID))
	}
	s.logger.Info("chat assigned",
		slog.Int64("chat_id", updated.ID),
		slog.Int64("moderator_id", userID))
	return updated, nil
}

// Close marks the chat closed. The assignee is kept.
func (s *Service) Close(ctx context.Context, chatID int64) (Chat, error) {
	c, err := s.repo.FindByID(ctx, chatID)
	if err != nil {
		return Chat{}, err
	}
	c.Status = StatusClosed
	return s.repo.Update(ctx, c)
}

// AbsorbInbound folds a new inbound contact into an existing chat: profile
// metadata merges in (later non-nil fields win) and a closed chat reopens
// to new. Returns the updated chat; a no-op change still bumps updated_at.
func (s *Service) AbsorbInbound(ctx context.Context, c Chat, metadata map[string]any) (Chat, error) {
	c.UserMetadata = MergeMetadata(c.UserMetadata, metadata)
	if c.Status == StatusClosed {
		c.Status = StatusNew
		s.logger.Info("chat reopened on inbound message", slog.Int64("chat_id", c.ID))
	}
	return s.repo.Update(ctx, c)
}

// Touch bumps the chat's activity timestamp.
func (s *Service) Touch(ctx context.Context, chatID int64) error {
	return s.repo.Touch(ctx, chatID)
}

// CloseIdleBefore closes chats untouched since the cutoff.
func (s *Service) CloseIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.CloseIdleBefore(ctx, cutoff)
}

// MergeMetadata overlays incoming profile fields onto existing ones.
// Nil incoming values never erase existing data; profile fields accumulate
// across messages.
func MergeMetadata(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}
