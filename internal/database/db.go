package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hexauth-server/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.Info("Connected to PostgreSQL database", "database", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.Info("Database connection closed")
	}
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	logging.Info("Running database migrations...")

	migrations := []string{
		// Platform owner accounts
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(70) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			owner_id VARCHAR(10) UNIQUE NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'developer',
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			ban_reason VARCHAR(200),
			last_ip VARCHAR(45),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_owner_id ON accounts(owner_id)`,

		// Tenant applications
		`CREATE TABLE IF NOT EXISTS applications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id VARCHAR(10) NOT NULL REFERENCES accounts(owner_id) ON DELETE CASCADE,
			name VARCHAR(40) NOT NULL,
			secret VARCHAR(64) UNIQUE NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			paused BOOLEAN NOT NULL DEFAULT FALSE,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			version VARCHAR(10) NOT NULL DEFAULT '1.0',
			download_url VARCHAR(200),
			file_hash TEXT,
			hwid_check_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			force_hwid BOOLEAN NOT NULL DEFAULT TRUE,
			min_hwid_length INTEGER NOT NULL DEFAULT 20,
			vpn_block_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			hash_check_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			block_leaked_passwords BOOLEAN NOT NULL DEFAULT FALSE,
			session_expiry_seconds INTEGER NOT NULL DEFAULT 21600,
			min_username_length INTEGER NOT NULL DEFAULT 1,
			license_mask VARCHAR(100) NOT NULL DEFAULT '******-******-******-******-******-******',
			cooldown_seconds INTEGER NOT NULL DEFAULT 604800,
			webhook_url VARCHAR(200),
			panel_url VARCHAR(200),
			messages JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_owner_name ON applications(owner_id, name)`,

		// End users of tenant applications
		`CREATE TABLE IF NOT EXISTS application_users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			username VARCHAR(70) NOT NULL,
			email VARCHAR(255),
			password_hash VARCHAR(100),
			hwid TEXT,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			ban_reason VARCHAR(200),
			ip_address VARCHAR(45),
			cooldown_until TIMESTAMPTZ,
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (application_id, username)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_app_users_app_username ON application_users(application_id, username)`,
		`CREATE INDEX IF NOT EXISTS idx_app_users_app_hwid ON application_users(application_id, hwid)`,

		// License keys
		`CREATE TABLE IF NOT EXISTS licenses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			key VARCHAR(70) NOT NULL,
			level VARCHAR(12) NOT NULL DEFAULT '1',
			note VARCHAR(100),
			status VARCHAR(20) NOT NULL DEFAULT 'not_used',
			expires_seconds BIGINT NOT NULL,
			generated_by VARCHAR(70),
			generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			used_at TIMESTAMPTZ,
			used_by VARCHAR(70),
			ban_reason VARCHAR(200),
			UNIQUE (application_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_app_key ON licenses(application_id, key)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_app_status ON licenses(application_id, status)`,

		// Subscription plans (templates, not grants)
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			name VARCHAR(50) NOT NULL,
			level VARCHAR(12) NOT NULL,
			UNIQUE (application_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_app_level ON subscriptions(application_id, level)`,

		// Per-user entitlement grants
		`CREATE TABLE IF NOT EXISTS user_subscriptions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES application_users(id) ON DELETE CASCADE,
			subscription_id UUID NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			is_paused BOOLEAN NOT NULL DEFAULT FALSE,
			paused_remaining_seconds BIGINT,
			license_key VARCHAR(70),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_subs_user_app ON user_subscriptions(user_id, application_id, expires_at)`,

		// Client sessions
		`CREATE TABLE IF NOT EXISTS application_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id VARCHAR(32) UNIQUE NOT NULL,
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			credential VARCHAR(70),
			is_validated BOOLEAN NOT NULL DEFAULT FALSE,
			encryption_key VARCHAR(100),
			ip_address VARCHAR(45),
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_sid_app ON application_sessions(session_id, application_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_app_valid ON application_sessions(application_id, is_validated, expires_at)`,

		// Blacklist and whitelist entries (consulted, never mutated by client flows)
		`CREATE TABLE IF NOT EXISTS blacklists (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			hwid TEXT,
			ip_address VARCHAR(45),
			reason VARCHAR(200),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blacklists_app ON blacklists(application_id)`,
		`CREATE TABLE IF NOT EXISTS whitelists (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			ip_address VARCHAR(45) NOT NULL,
			UNIQUE (application_id, ip_address)
		)`,

		// Tenant and per-user key-value variables
		`CREATE TABLE IF NOT EXISTS app_variables (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			data VARCHAR(500) NOT NULL,
			UNIQUE (application_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS user_variables (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES application_users(id) ON DELETE CASCADE,
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			data VARCHAR(500) NOT NULL,
			read_only BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (user_id, application_id, name)
		)`,

		// Download files and registered webhooks
		`CREATE TABLE IF NOT EXISTS files (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			file_id VARCHAR(32) NOT NULL,
			url VARCHAR(400) NOT NULL,
			UNIQUE (application_id, file_id)
		)`,
		`CREATE TABLE IF NOT EXISTS webhooks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			webhook_id VARCHAR(32) NOT NULL,
			url VARCHAR(400) NOT NULL,
			user_agent VARCHAR(200),
			UNIQUE (application_id, webhook_id)
		)`,

		// Chat channels and messages
		`CREATE TABLE IF NOT EXISTS chat_channels (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			name VARCHAR(50) NOT NULL,
			delay_seconds INTEGER NOT NULL DEFAULT 0,
			UNIQUE (application_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			channel_id UUID NOT NULL REFERENCES chat_channels(id) ON DELETE CASCADE,
			author VARCHAR(70) NOT NULL,
			message VARCHAR(275) NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_channel ON chat_messages(channel_id, sent_at)`,

		// Persisted action log entries (when no tenant webhook is set)
		`CREATE TABLE IF NOT EXISTS user_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
			credential VARCHAR(70),
			message VARCHAR(275) NOT NULL,
			pc_user VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_logs_app ON user_logs(application_id, created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logging.Info("Database migrations completed")
	return nil
}
