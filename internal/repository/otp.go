package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zynx-ai/backend/internal/domain"
)

// OtpRepository handles database operations for SMS passcodes.
type OtpRepository struct {
	db *pgxpool.Pool
}

func NewOtpRepository(db *pgxpool.Pool) *OtpRepository {
	return &OtpRepository{db: db}
}

// Create stores a freshly generated passcode.
func (r *OtpRepository) Create(ctx context.Context, otp *domain.OtpCode) error {
	query := `
		INSERT INTO otp_codes (id, user_id, phone, code, verified, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		otp.ID, otp.UserID, otp.Phone, otp.Code, otp.Verified, otp.ExpiresAt, otp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create otp code: %w", err)
	}
	return nil
}

// FindValid returns the most recent unverified, unexpired code matching the
// phone and code, or nil.
func (r *OtpRepository) FindValid(ctx context.Context, phone, code string, now time.Time) (*domain.OtpCode, error) {
	query := `
		SELECT id, user_id, phone, code, verified, expires_at, created_at
		FROM otp_codes
		WHERE phone = $1 AND code = $2 AND verified = FALSE AND expires_at > $3
		ORDER BY created_at DESC LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, phone, code, now)

	var otp domain.OtpCode
	err := row.Scan(&otp.ID, &otp.UserID, &otp.Phone, &otp.Code, &otp.Verified, &otp.ExpiresAt, &otp.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find otp code: %w", err)
	}
	return &otp, nil
}

// MarkVerified marks a code as used.
func (r *OtpRepository) MarkVerified(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE otp_codes SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	return nil
}

// DeleteExpired removes codes past their expiry.
func (r *OtpRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired otp codes: %w", err)
	}
	return nil
}
