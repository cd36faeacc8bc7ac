package moderator

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/relaydesk/relaydesk/internal/db"
)

const moderatorColumns = "id, username, email, password_hash, is_active, created_at, updated_at"

// PGRepository is the Postgres-backed moderator repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a moderator repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Moderator, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+moderatorColumns+" FROM moderators WHERE id = $1", id)
	return scanModerator(row)
}

func (r *PGRepository) FindByUsername(ctx context.Context, username string) (Moderator, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+moderatorColumns+" FROM moderators WHERE username = $1", username)
	return scanModerator(row)
}

func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT count(*) FROM moderators").Scan(&count)
	return count, err
}

func (r *PGRepository) Create(ctx context.Context, input CreateInput) (Moderator, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO moderators (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+moderatorColumns,
		input.Username, dbpkg.ToPgText(input.Email), input.PasswordHash)
	return scanModerator(row)
}

func scanModerator(row pgx.Row) (Moderator, error) {
	var (
		m     Moderator
		email pgtype.Text
	)
	err := row.Scan(&m.ID, &m.Username, &email, &m.PasswordHash, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Moderator{}, ErrNotFound
	}
	if err != nil {
		return Moderator{}, err
	}
	m.Email = dbpkg.TextToString(email)
	return m, nil
}
