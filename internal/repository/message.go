package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zynx-ai/backend/internal/domain"
)

// MessageRepository handles database operations for chat messages.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, user_id, role, content, response, tokens, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Response, &m.Tokens, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new message.
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (id, user_id, role, content, response, tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.UserID, m.Role, m.Content, m.Response, m.Tokens, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListRecent returns the user's most recent messages, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// List returns a page of the user's messages, newest first, with the total count.
func (r *MessageRepository) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Message, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// ListBetween returns the user's messages in a time range, oldest first.
// Zero bounds are open ended.
func (r *MessageRepository) ListBetween(ctx context.Context, userID string, start, end time.Time) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE user_id = $1`
	args := []interface{}{userID}
	n := 1
	if !start.IsZero() {
		n++
		query += fmt.Sprintf(` AND created_at >= $%d`, n)
		args = append(args, start)
	}
	if !end.IsZero() {
		n++
		query += fmt.Sprintf(` AND created_at <= $%d`, n)
		args = append(args, end)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// FindByID returns a message owned by the user, or nil.
func (r *MessageRepository) FindByID(ctx context.Context, id, userID string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND user_id = $2`, id, userID)
	m, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return m, nil
}

// Delete removes a message by ID.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// DeleteAllForUser clears the user's chat history.
func (r *MessageRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM messages WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// Stats returns the message count and total token usage for a user.
func (r *MessageRepository) Stats(ctx context.Context, userID string) (count int, tokens int, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(tokens), 0) FROM messages WHERE user_id = $1`, userID,
	).Scan(&count, &tokens)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read message stats: %w", err)
	}
	return count, tokens, nil
}

func collectMessages(rows pgx.Rows) ([]*domain.Message, error) {
	var msgs []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
