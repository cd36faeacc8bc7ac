package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service exposes source management to the handlers and the inbound pipeline.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a source service.
func NewService(log *slog.Logger, repo Repository) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: log.With(slog.String("service", "source")),
	}
}

// Get returns the source with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Source, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByIdentifier returns the source with the given public identifier.
// The widget session path resolves sources this way.
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (Source, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Source{}, ErrNotFound
	}
	return s.repo.FindByIdentifier(ctx, identifier)
}

// List returns all configured sources.
func (s *Service) List(ctx context.Context) ([]Source, error) {
	return s.repo.List(ctx)
}

// Create validates and persists a new source.
func (s *Service) Create(ctx context.Context, input UpsertInput) (Source, error) {
	if err := normalizeInput(&input); err != nil {
		return Source{}, err
	}
	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return Source{}, err
	}
	s.logger.Info("source created",
		slog.Int64("source_id", created.ID),
		slog.String("type", created.Type.String()))
	return created, nil
}

// Update validates and persists changes to an existing source.
func (s *Service) Update(ctx context.Context, id int64, input UpsertInput) (Source, error) {
	if err := normalizeInput(&input); err != nil {
		return Source{}, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a source and, via cascade, its departments and chats.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func normalizeInput(input *UpsertInput) error {
	parsed, err := ParseType(input.Type)
	if err != nil {
		return err
	}
	input.Type = parsed.String()
	input.Name = strings.TrimSpace(input.Name)
	input.Identifier = strings.TrimSpace(input.Identifier)
	if input.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if input.Identifier == "" {
		return fmt.Errorf("source identifier is required")
	}
	return nil
}
