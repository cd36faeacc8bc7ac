package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/relaydesk/relaydesk/internal/db"
)

const messageColumns = "id, chat_id, external_message_id, sender_id, sender_type, text, payload, is_read, created_at"

// PGRepository is the Postgres-backed message repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a message repository over the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, input CreateInput) (Message, bool, error) {
	payload, err := marshalPayload(input.Payload)
	if err != nil {
		return Message{}, false, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO messages (chat_id, external_message_id, sender_id, sender_type, text, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (chat_id, external_message_id) WHERE external_message_id IS NOT NULL DO NOTHING
		 RETURNING `+messageColumns,
		input.ChatID, dbpkg.ToPgText(input.ExternalMessageID), dbpkg.ToPgInt8(input.SenderID),
		string(input.Sender), input.Text, payload)
	inserted, err := scanMessage(row)
	if errors.Is(err, ErrNotFound) {
		// A concurrent or earlier delivery of the same provider message
		// already stored the row; hand back the stored one.
		existing, err := r.FindByChatAndExternalMessageID(ctx, input.ChatID, input.ExternalMessageID)
		return existing, false, err
	}
	if err != nil {
		return Message{}, false, err
	}
	return inserted, true, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Message, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1", id)
	return scanMessage(row)
}

func (r *PGRepository) FindByChatAndExternalMessageID(ctx context.Context, chatID int64, externalMessageID string) (Message, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE chat_id = $1 AND external_message_id = $2",
		chatID, externalMessageID)
	return scanMessage(row)
}

func (r *PGRepository) ListByChat(ctx context.Context, filter ListFilter) ([]Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE chat_id = $1"
	args := []any{filter.ChatID}
	if filter.BeforeID > 0 {
		args = append(args, filter.BeforeID)
		query += " AND id < $" + strconv.Itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += " ORDER BY id DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PGRepository) UpdatePayload(ctx context.Context, id int64, payload map[string]any) error {
	encoded, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		"UPDATE messages SET payload = $2 WHERE id = $1", id, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) MarkRead(ctx context.Context, chatID int64, sender SenderType) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE messages SET is_read = TRUE WHERE chat_id = $1 AND sender_type = $2 AND NOT is_read",
		chatID, string(sender))
	return err
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return encoded, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m          Message
		externalID pgtype.Text
		senderID   pgtype.Int8
		sender     string
		payload    []byte
	)
	err := row.Scan(&m.ID, &m.ChatID, &externalID, &senderID, &sender,
		&m.Text, &payload, &m.IsRead, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	m.ExternalMessageID = dbpkg.TextToString(externalID)
	m.SenderID = dbpkg.Int8ToInt64(senderID)
	m.Sender = SenderType(sender)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &m.Payload); err != nil {
			return Message{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return m, nil
}
