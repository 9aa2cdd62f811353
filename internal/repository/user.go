package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zynx-ai/backend/internal/domain"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password, phone, phone_verified, role,
	trial_start, trial_end, subscription_plan, subscription_status,
	is_banned, banned_at, banned_reason, device_fingerprint_hash,
	last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Phone, &u.PhoneVerified, &u.Role,
		&u.TrialStart, &u.TrialEnd, &u.SubscriptionPlan, &u.SubscriptionStatus,
		&u.IsBanned, &u.BannedAt, &u.BannedReason, &u.DeviceFingerprintHash,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password, phone, phone_verified, role,
			trial_start, trial_end, subscription_plan, subscription_status,
			is_banned, device_fingerprint_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.Password, u.Phone, u.PhoneVerified, u.Role,
		u.TrialStart, u.TrialEnd, u.SubscriptionPlan, u.SubscriptionStatus,
		u.IsBanned, u.DeviceFingerprintHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// GetEntitlement reads the trial window and mirrored subscription state for
// one user. Called fresh on every gated request.
func (r *UserRepository) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	query := `
		SELECT trial_start, trial_end, subscription_plan, subscription_status, is_banned
		FROM users WHERE id = $1
	`
	var e domain.Entitlement
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&e.TrialStart, &e.TrialEnd, &e.SubscriptionPlan, &e.SubscriptionStatus, &e.IsBanned,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read entitlement: %w", err)
	}
	return &e, nil
}

// SetSubscription updates the mirrored plan and status on the user record.
func (r *UserRepository) SetSubscription(ctx context.Context, userID, plan, status string) error {
	query := `
		UPDATE users SET subscription_plan = $1, subscription_status = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, plan, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update user subscription: %w", err)
	}
	return nil
}

// SetSubscriptionStatus updates only the mirrored status, leaving the plan as is.
func (r *UserRepository) SetSubscriptionStatus(ctx context.Context, userID, status string) error {
	query := `UPDATE users SET subscription_status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update user subscription status: %w", err)
	}
	return nil
}

// SetPhoneVerified stores the verified phone number on the user record.
func (r *UserRepository) SetPhoneVerified(ctx context.Context, userID, phone string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET phone = $1, phone_verified = TRUE, updated_at = NOW() WHERE id = $2`, phone, userID)
	if err != nil {
		return fmt.Errorf("failed to set phone verified: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to touch last login: %w", err)
	}
	return nil
}

// CountByFingerprintSince counts accounts created from a device fingerprint
// after the given time. Used to throttle trial abuse at signup.
func (r *UserRepository) CountByFingerprintSince(ctx context.Context, fingerprintHash string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE device_fingerprint_hash = $1 AND created_at >= $2`
	if err := r.db.QueryRow(ctx, query, fingerprintHash, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users by fingerprint: %w", err)
	}
	return count, nil
}

// SetBanned bans or unbans a user.
func (r *UserRepository) SetBanned(ctx context.Context, userID string, banned bool, reason *string) error {
	var err error
	if banned {
		_, err = r.db.Exec(ctx, `
			UPDATE users SET is_banned = TRUE, banned_at = NOW(), banned_reason = $1, updated_at = NOW()
			WHERE id = $2
		`, reason, userID)
	} else {
		_, err = r.db.Exec(ctx, `
			UPDATE users SET is_banned = FALSE, banned_at = NULL, banned_reason = NULL, updated_at = NOW()
			WHERE id = $1
		`, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update ban state: %w", err)
	}
	return nil
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Search string
	Status string // active, banned, subscribed
	Limit  int
	Offset int
}

// List returns users for the admin dashboard, newest first.
func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]*domain.User, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0

	if f.Search != "" {
		n++
		where += fmt.Sprintf(` AND (email ILIKE $%d OR phone LIKE $%d)`, n, n)
		args = append(args, "%"+f.Search+"%")
	}
	switch f.Status {
	case "active":
		where += ` AND is_banned = FALSE`
	case "banned":
		where += ` AND is_banned = TRUE`
	case "subscribed":
		where += ` AND subscription_status = 'active'`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, n+1, n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, nil
}
