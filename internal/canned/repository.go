package canned

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/db"
)

const responseColumns = "id, source_id, code, title, text, is_active, created_at, updated_at"

// PGRepository is the Postgres-backed canned response repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a canned response repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Response, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+responseColumns+" FROM canned_responses WHERE id = $1", id)
	return scanResponse(row)
}

func (r *PGRepository) ListActive(ctx context.Context, filter ListFilter) ([]Response, error) {
	query := "SELECT " + responseColumns + " FROM canned_responses WHERE is_active"
	var args []any
	if filter.SourceID == 0 {
		query += " AND source_id IS NULL"
	} else {
		args = append(args, filter.SourceID)
		query += " AND (source_id = $1 OR source_id IS NULL)"
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := strconv.Itoa(len(args))
		query += " AND (code ILIKE $" + n + " OR title ILIKE $" + n + " OR text ILIKE $" + n + ")"
	}
	query += " ORDER BY code"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, input UpsertInput) (Response, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO canned_responses (source_id, code, title, text, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+responseColumns,
		db.ToPgInt8(input.SourceID), input.Code, input.Title, input.Text, input.IsActive)
	return scanResponse(row)
}

func (r *PGRepository) Update(ctx context.Context, id int64, input UpsertInput) (Response, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE canned_responses
		 SET source_id = $2, code = $3, title = $4, text = $5, is_active = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+responseColumns,
		id, db.ToPgInt8(input.SourceID), input.Code, input.Title, input.Text, input.IsActive)
	return scanResponse(row)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM canned_responses WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanResponse(row pgx.Row) (Response, error) {
	var resp Response
	var sourceID pgtype.Int8
	err := row.Scan(&resp.ID, &sourceID, &resp.Code, &resp.Title, &resp.Text,
		&resp.IsActive, &resp.CreatedAt, &resp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, err
	}
	resp.SourceID = db.Int8ToInt64(sourceID)
	return resp, nil
}
