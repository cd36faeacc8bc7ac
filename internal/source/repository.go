package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/relaydesk/relaydesk/internal/db"
)

const sourceColumns = "id, name, type, identifier, secret_key, settings, created_at, updated_at"

// PGRepository is the Postgres-backed source repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a source repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Source, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE id = $1", id)
	return scanSource(row)
}

func (r *PGRepository) FindByIdentifier(ctx context.Context, identifier string) (Source, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE identifier = $1", identifier)
	return scanSource(row)
}

func (r *PGRepository) List(ctx context.Context) ([]Source, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+sourceColumns+" FROM sources ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, input UpsertInput) (Source, error) {
	settings, err := marshalSettings(input.Settings)
	if err != nil {
		return Source{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sources (name, type, identifier, secret_key, settings)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+sourceColumns,
		input.Name, input.Type, input.Identifier, dbpkg.ToPgText(input.SecretKey), settings)
	return scanSource(row)
}

func (r *PGRepository) Update(ctx context.Context, id int64, input UpsertInput) (Source, error) {
	settings, err := marshalSettings(input.Settings)
	if err != nil {
		return Source{}, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE sources
		 SET name = $2, type = $3, identifier = $4, secret_key = $5, settings = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+sourceColumns,
		id, input.Name, input.Type, input.Identifier, dbpkg.ToPgText(input.SecretKey), settings)
	return scanSource(row)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM sources WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalSettings(settings map[string]any) ([]byte, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal source settings: %w", err)
	}
	return payload, nil
}

func scanSource(row pgx.Row) (Source, error) {
	var (
		src       Source
		rawType   string
		secretKey pgtype.Text
		settings  []byte
	)
	err := row.Scan(&src.ID, &src.Name, &rawType, &src.Identifier, &secretKey, &settings, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, ErrNotFound
	}
	if err != nil {
		return Source{}, err
	}
	src.Type = Type(rawType)
	src.SecretKey = dbpkg.TextToString(secretKey)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &src.Settings); err != nil {
			return Source{}, fmt.Errorf("unmarshal source settings: %w", err)
		}
	}
	if src.Settings == nil {
		src.Settings = map[string]any{}
	}
	return src, nil
}
