package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                      TEXT PRIMARY KEY,
			email                   TEXT NOT NULL UNIQUE,
			password                TEXT NOT NULL,
			phone                   TEXT,
			phone_verified          BOOLEAN NOT NULL DEFAULT FALSE,
			role                    TEXT NOT NULL DEFAULT 'user',
			trial_start             TIMESTAMPTZ,
			trial_end               TIMESTAMPTZ,
			subscription_plan       TEXT,
			subscription_status     TEXT,
			is_banned               BOOLEAN NOT NULL DEFAULT FALSE,
			banned_at               TIMESTAMPTZ,
			banned_reason           TEXT,
			device_fingerprint_hash TEXT,
			last_login_at           TIMESTAMPTZ,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (trial_end IS NULL OR trial_start IS NULL OR trial_end >= trial_start)
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_fingerprint ON users(device_fingerprint_hash);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                     TEXT PRIMARY KEY,
			user_id                TEXT NOT NULL REFERENCES users(id),
			stripe_customer_id     TEXT NOT NULL,
			stripe_subscription_id TEXT NOT NULL UNIQUE,
			stripe_price_id        TEXT NOT NULL,
			plan                   TEXT NOT NULL,
			status                 TEXT NOT NULL,
			current_period_start   TIMESTAMPTZ NOT NULL,
			current_period_end     TIMESTAMPTZ NOT NULL,
			cancel_at_period_end   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			role       TEXT NOT NULL DEFAULT 'user',
			content    TEXT NOT NULL,
			response   TEXT,
			tokens     INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id, created_at);

		CREATE TABLE IF NOT EXISTS otp_codes (
			id         TEXT PRIMARY KEY,
			user_id    TEXT,
			phone      TEXT NOT NULL,
			code       TEXT NOT NULL,
			verified   BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_otp_codes_phone ON otp_codes(phone, created_at);

		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			token      TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);

		CREATE TABLE IF NOT EXISTS audit_logs (
			id         TEXT PRIMARY KEY,
			user_id    TEXT,
			action     TEXT NOT NULL,
			resource   TEXT NOT NULL,
			details    TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id, created_at);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
