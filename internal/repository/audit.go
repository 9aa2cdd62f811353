package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zynx-ai/backend/internal/domain"
)

// AuditRepository handles database operations for the audit trail.
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, action, resource, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		l.ID, l.UserID, l.Action, l.Resource, l.Details, l.IPAddress, l.UserAgent, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// AuditFilter narrows audit-log listings.
type AuditFilter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}

// List returns audit entries, newest first.
func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]*domain.AuditLog, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0
	if f.UserID != "" {
		n++
		where += fmt.Sprintf(` AND user_id = $%d`, n)
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		n++
		where += fmt.Sprintf(` AND action = $%d`, n)
		args = append(args, f.Action)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, action, resource, details, ip_address, user_agent, created_at
		FROM audit_logs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d
	`, where, n+1, n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Resource, &l.Details,
			&l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, total, nil
}
