// Package chat manages conversation threads between an external user and a
// source. One chat row persists per (source, external user) pair for the
// lifetime of the relationship.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the referenced chat does not exist.
var ErrNotFound = errors.New("chat not found")

// Status is the lifecycle state of a chat.
type Status string

const (
	StatusNew    Status = "new"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusNew, StatusActive, StatusClosed:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown chat status %q", raw)
	}
}

// Chat is one external-user conversation thread. AssignedTo is 0 while the
// chat is unassigned.
type Chat struct {
	ID             int64          `json:"id"`
	SourceID       int64          `json:"source_id"`
	DepartmentID   int64          `json:"department_id"`
	ExternalUserID string         `json:"external_user_id"`
	UserMetadata   map[string]any `json:"user_metadata"`
	Status         Status         `json:"status"`
	AssignedTo     int64          `json:"assigned_to,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CreateInput is the input for inserting a new chat.
type CreateInput struct {
	SourceID       int64
	DepartmentID   int64
	ExternalUserID string
	UserMetadata   map[string]any
}

// ListFilter narrows and paginates chat listings for the moderator inbox.
type ListFilter struct {
	SourceID     int64
	DepartmentID int64
	AssignedTo   int64
	Status       Status
	Limit        int
	Offset       int
}

// Repository is the persistence surface for chats.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Chat, error)
	FindBySourceAndExternalUser(ctx context.Context, sourceID int64, externalUserID string) (Chat, error)
	// Create inserts a new chat. A concurrent first-contact race on the
	// (source_id, external_user_id) unique key resolves by returning the
	// already-inserted row.
	Create(ctx context.Context, input CreateInput) (Chat, error)
	Update(ctx context.Context, chat Chat) (Chat, error)
	List(ctx context.Context, filter ListFilter) ([]Chat, error)
	// Touch bumps updated_at, marking the chat as recently active.
	Touch(ctx context.Context, id int64) error
	// CloseIdleBefore closes non-closed chats untouched since the cutoff
	// and reports how many were closed.
	CloseIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
