// Package department manages routing buckets within a source. The first
// active department (by ascending id) serves as the default queue when an
// inbound payload names none.
package department

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested department does not exist.
var ErrNotFound = errors.New("department not found")

// Department is a routing bucket scoped to one source.
type Department struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertInput is the input for creating or updating a department.
type UpsertInput struct {
	SourceID int64  `json:"source_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug" validate:"required"`
	IsActive bool   `json:"is_active"`
}

// Repository is the persistence surface for departments.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Department, error)
	// ListBySource returns all departments for a source ordered by id.
	ListBySource(ctx context.Context, sourceID int64) ([]Department, error)
	FindBySlug(ctx context.Context, sourceID int64, slug string) (Department, error)
	Create(ctx context.Context, input UpsertInput) (Department, error)
	Update(ctx context.Context, id int64, input UpsertInput) (Department, error)
	Delete(ctx context.Context, id int64) error
}
