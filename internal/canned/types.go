// Package canned manages prepared reply snippets moderators insert into
// chats. A response with no source is global and shows up for every
// channel; one bound to a source shows up for that channel only.
package canned

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested canned response does not exist.
var ErrNotFound = errors.New("canned response not found")

// Response is a prepared reply snippet. SourceID of 0 means global.
type Response struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id,omitempty"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertInput is the input for creating or updating a canned response.
// SourceID of 0 makes the response global.
type UpsertInput struct {
	SourceID int64  `json:"source_id"`
	Code     string `json:"code" validate:"required"`
	Title    string `json:"title"`
	Text     string `json:"text" validate:"required"`
	IsActive bool   `json:"is_active"`
}

// ListFilter narrows the active responses returned to moderators.
type ListFilter struct {
	// SourceID of 0 returns global responses only; otherwise responses
	// for that source plus the global ones.
	SourceID int64
	// Query is a case-insensitive substring match over code, title and
	// text. Blank matches everything.
	Query string
}

// Repository is the persistence surface for canned responses.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Response, error)
	// ListActive returns active responses matching the filter ordered
	// by code.
	ListActive(ctx context.Context, filter ListFilter) ([]Response, error)
	Create(ctx context.Context, input UpsertInput) (Response, error)
	Update(ctx context.Context, id int64, input UpsertInput) (Response, error)
	Delete(ctx context.Context, id int64) error
}
