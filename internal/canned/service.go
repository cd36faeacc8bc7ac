package canned

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service exposes canned response management and lookup.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a canned response service.
func NewService(log *slog.Logger, repo Repository) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: log.With(slog.String("service", "canned")),
	}
}

// Get returns the canned response with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Response, error) {
	return s.repo.FindByID(ctx, id)
}

// ListActive returns the active responses a moderator can pick from,
// ordered by code. A source filter keeps that source's responses plus
// the global ones.
func (s *Service) ListActive(ctx context.Context, filter ListFilter) ([]Response, error) {
	return s.repo.ListActive(ctx, filter)
}

// Create validates and persists a new canned response.
func (s *Service) Create(ctx context.Context, input UpsertInput) (Response, error) {
	if err := normalizeInput(&input); err != nil {
		return Response{}, err
	}
	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return Response{}, err
	}
	s.logger.Info("canned response created",
		slog.Int64("canned_response_id", created.ID),
		slog.String("code", created.Code))
	return created, nil
}

// Update validates and persists changes to an existing canned response.
func (s *Service) Update(ctx context.Context, id int64, input UpsertInput) (Response, error) {
	if err := normalizeInput(&input); err != nil {
		return Response{}, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a canned response.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func normalizeInput(input *UpsertInput) error {
	input.Code = strings.ToLower(strings.TrimSpace(input.Code))
	input.Title = strings.TrimSpace(input.Title)
	input.Text = strings.TrimSpace(input.Text)
	if input.Code == "" {
		return fmt.Errorf("canned response code is required")
	}
	if input.Text == "" {
		return fmt.Errorf("canned response text is required")
	}
	return nil
}
