package moderator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/relaydesk/relaydesk/internal/config"
)

// Service wraps moderator lookup, credential checks, and first-run
// bootstrap.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a moderator service.
func NewService(log *slog.Logger, repo Repository) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: log.With(slog.String("service", "moderator")),
	}
}

// Get returns the moderator with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Moderator, error) {
	return s.repo.FindByID(ctx, id)
}

// Login checks username/password and returns the account. A missing
// account, a wrong password, and an inactive account all come back as
// ErrInvalidCredentials so callers cannot probe for usernames.
func (s *Service) Login(ctx context.Context, username, password string) (Moderator, error) {
	mod, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Moderator{}, ErrInvalidCredentials
	}
	if err != nil {
		return Moderator{}, err
	}
	if !mod.IsActive {
		return Moderator{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(mod.PasswordHash), []byte(password)); err != nil {
		return Moderator{}, ErrInvalidCredentials
	}
	return mod, nil
}

// Create hashes the password and inserts a new moderator account.
func (s *Service) Create(ctx context.Context, username, email, password string) (Moderator, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Moderator{}, err
	}
	return s.repo.Create(ctx, CreateInput{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
}

// Bootstrap creates the initial admin account from config when the
// moderators table is empty.
func (s *Service) Bootstrap(ctx context.Context, cfg config.AdminConfig) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	username := strings.TrimSpace(cfg.Username)
	password := strings.TrimSpace(cfg.Password)
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password required in config.toml")
	}
	if password == "change-your-password-here" {
		s.logger.Warn("admin password uses default placeholder; please update config.toml")
	}
	mod, err := s.Create(ctx, username, strings.TrimSpace(cfg.Email), password)
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	s.logger.Info("admin account created",
		slog.Int64("moderator_id", mod.ID),
		slog.String("username", mod.Username))
	return nil
}
