package moderator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/relaydesk/relaydesk/internal/config"
)

type memRepo struct {
	nextID     int64
	moderators map[int64]Moderator
}

func newMemRepo() *memRepo {
	return &memRepo{moderators: make(map[int64]Moderator)}
}

func (m *memRepo) FindByID(_ context.Context, id int64) (Moderator, error) {
	mod, ok := m.moderators[id]
	if !ok {
		return Moderator{}, ErrNotFound
	}
	return mod, nil
}

func (m *memRepo) FindByUsername(_ context.Context, username string) (Moderator, error) {
	for _, mod := range m.moderators {
		if mod.Username == username {
			return mod, nil
		}
	}
	return Moderator{}, ErrNotFound
}

func (m *memRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.moderators)), nil
}

func (m *memRepo) Create(_ context.Context, input CreateInput) (Moderator, error) {
	m.nextID++
	mod := Moderator{
		ID:           m.nextID,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
	}
	m.moderators[mod.ID] = mod
	return mod, nil
}

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo), repo
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), "alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.PasswordHash == "correct horse" {
		t.Fatal("the password must be stored hashed")
	}

	mod, err := svc.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if mod.ID != created.ID {
		t.Fatalf("expected moderator %d, got %d", created.ID, mod.ID)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService(t)
	created, err := svc.Create(context.Background(), "alice", "", "correct horse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Unknown user, wrong password, and a deactivated account must be
	// indistinguishable to the caller.
	if _, err := svc.Login(context.Background(), "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	mod := repo.moderators[created.ID]
	mod.IsActive = false
	repo.moderators[created.ID] = mod
	if _, err := svc.Login(context.Background(), "alice", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive account: got %v", err)
	}
}

func TestBootstrapCreatesFirstAdmin(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService(t)
	cfg := config.AdminConfig{Username: "admin", Password: "s3cret", Email: "admin@example.com"}

	if err := svc.Bootstrap(context.Background(), cfg); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(repo.moderators) != 1 {
		t.Fatalf("expected 1 account, got %d", len(repo.moderators))
	}

	// A second bootstrap with accounts present is a no-op.
	if err := svc.Bootstrap(context.Background(), cfg); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if len(repo.moderators) != 1 {
		t.Fatalf("bootstrap must not duplicate accounts, got %d", len(repo.moderators))
	}
}

func TestBootstrapRequiresCredentials(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	if err := svc.Bootstrap(context.Background(), config.AdminConfig{}); err == nil {
		t.Fatal("expected an error when admin credentials are missing")
	}
}
