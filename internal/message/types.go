// Package message holds the message entity, its persistence, and the
// service implementing dedup-aware creation and moderator sends.
package message

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("message not found")

// SenderType tells who authored a message.
type SenderType string

const (
	SenderClient    SenderType = "client"
	SenderModerator SenderType = "moderator"
	SenderSystem    SenderType = "system"
)

// Attachment describes one downloaded file attached to a message. It lives
// inside the message payload under the attachments key.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Message is a single chat message from either side of the conversation.
type Message struct {
	ID       int64      `json:"id"`
	ChatID   int64      `json:"chat_id"`
	SenderID int64      `json:"sender_id,omitempty"`
	Sender   SenderType `json:"sender_type"`
	Text     string     `json:"text"`
	// ExternalMessageID is the provider-side id; blank means the provider
	// assigned none and the message never participates in dedup.
	ExternalMessageID string         `json:"external_message_id,omitempty"`
	Payload           map[string]any `json:"payload,omitempty"`
	IsRead            bool           `json:"is_read"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Attachments decodes the attachments list from the payload.
func (m Message) Attachments() []Attachment {
	raw, ok := m.Payload["attachments"].([]any)
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		att := Attachment{}
		if v, ok := fields["id"].(string); ok {
			att.ID = v
		}
		if v, ok := fields["name"].(string); ok {
			att.Name = v
		}
		if v, ok := fields["mime_type"].(string); ok {
			att.MimeType = v
		}
		if v, ok := fields["size"].(float64); ok {
			att.Size = int64(v)
		}
		if v, ok := fields["url"].(string); ok {
			att.URL = v
		}
		out = append(out, att)
	}
	return out
}

// CreateInput carries the fields for inserting a message.
type CreateInput struct {
	ChatID            int64
	SenderID          int64
	Sender            SenderType
	Text              string
	ExternalMessageID string
	Payload           map[string]any
}

// ListFilter pages a chat's history backwards from BeforeID.
type ListFilter struct {
	ChatID   int64
	BeforeID int64
	Limit    int
}

// Repository is the message persistence surface.
type Repository interface {
	// Insert persists the message. When the (chat, external id) pair
	// already exists it returns the stored row and created=false.
	Insert(ctx context.Context, input CreateInput) (Message, bool, error)
	FindByID(ctx context.Context, id int64) (Message, error)
	FindByChatAndExternalMessageID(ctx context.Context, chatID int64, externalMessageID string) (Message, error)
	ListByChat(ctx context.Context, filter ListFilter) ([]Message, error)
	UpdatePayload(ctx context.Context, id int64, payload map[string]any) error
	MarkRead(ctx context.Context, chatID int64, sender SenderType) error
}
