package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zynx-ai/backend/internal/domain"
)

// SubscriptionRepository handles database operations for subscription records.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, stripe_customer_id, stripe_subscription_id,
	stripe_price_id, plan, status, current_period_start, current_period_end,
	cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.StripeCustomerID, &s.StripeSubscriptionID,
		&s.StripePriceID, &s.Plan, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert inserts a subscription record, or refreshes its mutable state when a
// record with the same external subscription ID already exists. Replaying the
// event that created a record therefore leaves the store unchanged.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, stripe_customer_id, stripe_subscription_id,
			stripe_price_id, plan, status, current_period_start, current_period_end,
			cancel_at_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stripe_subscription_id) DO UPDATE
		SET status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.StripePriceID, sub.Plan, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// FindByStripeID returns the record for an external subscription ID, or nil.
func (r *SubscriptionRepository) FindByStripeID(ctx context.Context, stripeSubID string) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`,
		stripeSubID)
	s, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return s, nil
}

// FindActiveByUserID returns the user's active subscription, or nil.
func (r *SubscriptionRepository) FindActiveByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, userID)
	s, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return s, nil
}

// FindLatestByUserID returns the user's most recent subscription record, or nil.
func (r *SubscriptionRepository) FindLatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, userID)
	s, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest subscription: %w", err)
	}
	return s, nil
}

// UpdateByStripeID applies the full state carried by a billing event to the
// record keyed by external subscription ID.
func (r *SubscriptionRepository) UpdateByStripeID(ctx context.Context, stripeSubID string, upd domain.SubscriptionUpdate) error {
	query := `
		UPDATE subscriptions
		SET status = $1, current_period_start = $2, current_period_end = $3,
			cancel_at_period_end = $4, updated_at = NOW()
		WHERE stripe_subscription_id = $5
	`
	_, err := r.db.Exec(ctx, query,
		upd.Status, upd.CurrentPeriodStart, upd.CurrentPeriodEnd, upd.CancelAtPeriodEnd, stripeSubID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// SetStatusByStripeID updates only the status of a subscription record.
func (r *SubscriptionRepository) SetStatusByStripeID(ctx context.Context, stripeSubID, status string) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE stripe_subscription_id = $2`
	_, err := r.db.Exec(ctx, query, status, stripeSubID)
	if err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	return nil
}

// SetCancelAtPeriodEnd flags a record to end at the period close.
func (r *SubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, stripeSubID string) error {
	query := `UPDATE subscriptions SET cancel_at_period_end = TRUE, updated_at = NOW() WHERE stripe_subscription_id = $1`
	_, err := r.db.Exec(ctx, query, stripeSubID)
	if err != nil {
		return fmt.Errorf("failed to flag cancel at period end: %w", err)
	}
	return nil
}

// List returns subscriptions for the admin dashboard, newest first,
// optionally filtered by status.
func (r *SubscriptionRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.Subscription, int, error) {
	where := ``
	args := []interface{}{}
	n := 0
	if status != "" {
		n++
		where = fmt.Sprintf(`WHERE status = $%d`, n)
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM subscriptions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		subscriptionColumns, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, total, nil
}
