package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/relaydesk/relaydesk/internal/db"
)

const chatColumns = "id, source_id, department_id, external_user_id, user_metadata, status, assigned_to, created_at, updated_at"

// PGRepository is the Postgres-backed chat repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a chat repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Chat, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE id = $1", id)
	return scanChat(row)
}

func (r *PGRepository) FindBySourceAndExternalUser(ctx context.Context, sourceID int64, externalUserID string) (Chat, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE source_id = $1 AND external_user_id = $2",
		sourceID, externalUserID)
	return scanChat(row)
}

func (r *PGRepository) Create(ctx context.Context, input CreateInput) (Chat, error) {
	metadata, err := marshalMetadata(input.UserMetadata)
	if err != nil {
		return Chat{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO chats (source_id, department_id, external_user_id, user_metadata, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_id, external_user_id) DO NOTHING
		 RETURNING `+chatColumns,
		input.SourceID, input.DepartmentID, input.ExternalUserID, metadata, StatusNew.String())
	created, err := scanChat(row)
	if errors.Is(err, ErrNotFound) {
		// Lost a concurrent first-contact race; the winner's row is ours.
		return r.FindBySourceAndExternalUser(ctx, input.SourceID, input.ExternalUserID)
	}
	return created, err
}

func (r *PGRepository) Update(ctx context.Context, chat Chat) (Chat, error) {
	metadata, err := marshalMetadata(chat.UserMetadata)
	if err != nil {
		return Chat{}, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE chats
		 SET department_id = $2, user_metadata = $3, status = $4, assigned_to = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+chatColumns,
		chat.ID, chat.DepartmentID, metadata, chat.Status.String(), dbpkg.ToPgInt8(chat.AssignedTo))
	return scanChat(row)
}

func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Chat, error) {
	query := "SELECT " + chatColumns + " FROM chats WHERE TRUE"
	args := make([]any, 0, 6)
	if filter.SourceID != 0 {
		args = append(args, filter.SourceID)
		query += " AND source_id = $" + strconv.Itoa(len(args))
	}
	if filter.DepartmentID != 0 {
		args = append(args, filter.DepartmentID)
		query += " AND department_id = $" + strconv.Itoa(len(args))
	}
	if filter.AssignedTo != 0 {
		args = append(args, filter.AssignedTo)
		query += " AND assigned_to = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status.String())
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY updated_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *PGRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, "UPDATE chats SET updated_at = now() WHERE id = $1", id)
	return err
}

func (r *PGRepository) CloseIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chats SET status = $1, updated_at = now() WHERE status <> $1 AND updated_at < $2",
		StatusClosed.String(), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal user metadata: %w", err)
	}
	return payload, nil
}

func scanChat(row pgx.Row) (Chat, error) {
	var (
		c          Chat
		rawStatus  string
		metadata   []byte
		assignedTo pgtype.Int8
	)
	err := row.Scan(&c.ID, &c.SourceID, &c.DepartmentID, &c.ExternalUserID, &metadata, &rawStatus, &assignedTo, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, err
	}
	c.Status = Status(rawStatus)
	c.AssignedTo = dbpkg.Int8ToInt64(assignedTo)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.UserMetadata); err != nil {
			return Chat{}, fmt.Errorf("unmarshal user metadata: %w", err)
		}
	}
	if c.UserMetadata == nil {
		c.UserMetadata = map[string]any{}
	}
	return c, nil
}
