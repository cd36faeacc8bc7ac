package department

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service exposes department management and default-queue resolution.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a department service.
func NewService(log *slog.Logger, repo Repository) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: log.With(slog.String("service", "department")),
	}
}

// Get returns the department with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	return s.repo.FindByID(ctx, id)
}

// ListBySource returns all departments for a source ordered by id.
func (s *Service) ListBySource(ctx context.Context, sourceID int64) ([]Department, error) {
	return s.repo.ListBySource(ctx, sourceID)
}

// FirstActive returns the default queue for a source: the active department
// with the lowest id. ErrNotFound when the source has no active department.
func (s *Service) FirstActive(ctx context.Context, sourceID int64) (Department, error) {
	departments, err := s.repo.ListBySource(ctx, sourceID)
	if err != nil {
		return Department{}, err
	}
	for _, dept := range departments {
		if dept.IsActive {
			return dept, nil
		}
	}
	return Department{}, ErrNotFound
}

// ResolveSlug returns the department with the given slug, falling back to
// the default queue when slug is blank.
func (s *Service) ResolveSlug(ctx context.Context, sourceID int64, slug string) (Department, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return s.FirstActive(ctx, sourceID)
	}
	return s.repo.FindBySlug(ctx, sourceID, slug)
}

// Create validates and persists a new department.
func (s *Service) Create(ctx context.Context, input UpsertInput) (Department, error) {
	if err := normalizeInput(&input); err != nil {
		return Department{}, err
	}
	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return Department{}, err
	}
	s.logger.Info("department created",
		slog.Int64("department_id", created.ID),
		slog.Int64("source_id", created.SourceID))
	return created, nil
}

// Update validates and persists changes to an existing department.
func (s *Service) Update(ctx context.Context, id int64, input UpsertInput) (Department, error) {
	if err := normalizeInput(&input); err != nil {
		return Department{}, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a department.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func normalizeInput(input *UpsertInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if input.Name == "" {
		return fmt.Errorf("department name is required")
	}
	if input.Slug == "" {
		return fmt.Errorf("department slug is required")
	}
	return nil
}
