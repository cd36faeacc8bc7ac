package department

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const departmentColumns = "id, source_id, name, slug, is_active, created_at, updated_at"

// PGRepository is the Postgres-backed department repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a department repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Department, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+departmentColumns+" FROM departments WHERE id = $1", id)
	return scanDepartment(row)
}

func (r *PGRepository) ListBySource(ctx context.Context, sourceID int64) ([]Department, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+departmentColumns+" FROM departments WHERE source_id = $1 ORDER BY id", sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		departments = append(departments, dept)
	}
	return departments, rows.Err()
}

func (r *PGRepository) FindBySlug(ctx context.Context, sourceID int64, slug string) (Department, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+departmentColumns+" FROM departments WHERE source_id = $1 AND slug = $2",
		sourceID, slug)
	return scanDepartment(row)
}

func (r *PGRepository) Create(ctx context.Context, input UpsertInput) (Department, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO departments (source_id, name, slug, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+departmentColumns,
		input.SourceID, input.Name, input.Slug, input.IsActive)
	return scanDepartment(row)
}

func (r *PGRepository) Update(ctx context.Context, id int64, input UpsertInput) (Department, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE departments
		 SET name = $2, slug = $3, is_active = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+departmentColumns,
		id, input.Name, input.Slug, input.IsActive)
	return scanDepartment(row)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM departments WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDepartment(row pgx.Row) (Department, error) {
	var dept Department
	err := row.Scan(&dept.ID, &dept.SourceID, &dept.Name, &dept.Slug, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	if err != nil {
		return Department{}, err
	}
	return dept, nil
}
