// Package moderator holds operator accounts and credential checks.
package moderator

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested moderator does not exist.
var ErrNotFound = errors.New("moderator not found")

// ErrInvalidCredentials is returned on a failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Moderator is an operator account.
type Moderator struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateInput carries the fields for a new moderator.
type CreateInput struct {
	Username     string `validate:"required,min=3,max=64"`
	Email        string `validate:"omitempty,email"`
	PasswordHash string `validate:"required"`
}

// Repository is the moderator persistence surface.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Moderator, error)
	FindByUsername(ctx context.Context, username string) (Moderator, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, input CreateInput) (Moderator, error)
}
