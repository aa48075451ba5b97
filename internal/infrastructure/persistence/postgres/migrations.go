package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions and their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %w", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_matching", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_reputation", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_notifications", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// 001: profiles
// ─────────────────────────────────────────────────────────────────────────────

const migration001Up = `
-- Reputation projection over the external user profile.
-- rating_sum / total_ratings is the running mean; both change in one UPDATE.
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    university TEXT NOT NULL DEFAULT '',
    rating_sum BIGINT NOT NULL DEFAULT 0,
    total_ratings INTEGER NOT NULL DEFAULT 0,
    points INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rating_sum CHECK (rating_sum >= 0),
    CONSTRAINT valid_total_ratings CHECK (total_ratings >= 0)
);

CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_profiles_university ON profiles(lower(university));
`

const migration001Down = `
DROP TABLE IF EXISTS profiles;
`

// ─────────────────────────────────────────────────────────────────────────────
// 002: offers, matches, sessions
// ─────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS subject_offers (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    subject TEXT NOT NULL,
    subject_key TEXT NOT NULL,
    role VARCHAR(10) NOT NULL,
    proficiency VARCHAR(20) NOT NULL,
    urgency VARCHAR(10) NOT NULL,
    target_date TIMESTAMP WITH TIME ZONE,
    tags TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uniq_offer_user_subject_role UNIQUE (user_id, subject_key, role),
    CONSTRAINT valid_role CHECK (role IN ('teach', 'learn')),
    CONSTRAINT valid_proficiency CHECK (proficiency IN ('beginner', 'intermediate', 'advanced')),
    CONSTRAINT valid_urgency CHECK (urgency IN ('low', 'medium', 'high'))
);

CREATE INDEX IF NOT EXISTS idx_offers_subject_role ON subject_offers(subject_key, role, seq);
CREATE INDEX IF NOT EXISTS idx_offers_user ON subject_offers(user_id, seq);

CREATE TABLE IF NOT EXISTS matches (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    requester_id TEXT NOT NULL,
    helper_id TEXT NOT NULL,
    subject TEXT NOT NULL,
    subject_key TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    message TEXT NOT NULL DEFAULT '',
    scheduled_time TIMESTAMP WITH TIME ZONE,
    meeting_link TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    responded_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_match_status CHECK (status IN ('pending', 'accepted', 'declined', 'completed')),
    CONSTRAINT no_self_match CHECK (requester_id <> helper_id)
);

-- At most one non-terminal match per (requester, helper, subject).
CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_match
    ON matches(requester_id, helper_id, subject_key)
    WHERE status IN ('pending', 'accepted');

CREATE INDEX IF NOT EXISTS idx_matches_requester ON matches(requester_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_matches_helper ON matches(helper_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_matches_status_updated ON matches(status, updated_at);

CREATE TABLE IF NOT EXISTS study_sessions (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    subject TEXT NOT NULL,
    host_id TEXT NOT NULL,
    participant_ids TEXT[] NOT NULL,
    scheduled_time TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_minutes INTEGER NOT NULL DEFAULT 60,
    meeting_link TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_status CHECK (status IN ('scheduled', 'active', 'completed', 'cancelled'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_match ON study_sessions(match_id, seq);
`

const migration002Down = `
DROP TABLE IF EXISTS study_sessions;
DROP TABLE IF EXISTS matches;
DROP TABLE IF EXISTS subject_offers;
`

// ─────────────────────────────────────────────────────────────────────────────
// 003: ratings, point awards
// ─────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS ratings (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    rater_id TEXT NOT NULL,
    rated_user_id TEXT NOT NULL,
    score SMALLINT NOT NULL,
    feedback TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uniq_rating_rater_match UNIQUE (rater_id, match_id),
    CONSTRAINT valid_score CHECK (score BETWEEN 1 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_ratings_rated_user ON ratings(rated_user_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_ratings_bonus ON ratings(created_at) WHERE score >= 4;

-- Idempotency ledger: one row per (user, reason, source).
CREATE TABLE IF NOT EXISTS point_awards (
    user_id TEXT NOT NULL,
    reason VARCHAR(30) NOT NULL,
    source_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, reason, source_id),
    CONSTRAINT positive_amount CHECK (amount > 0)
);
`

const migration003Down = `
DROP TABLE IF EXISTS point_awards;
DROP TABLE IF EXISTS ratings;
`

// ─────────────────────────────────────────────────────────────────────────────
// 004: notifications
// ─────────────────────────────────────────────────────────────────────────────

const migration004Up = `
CREATE TABLE IF NOT EXISTS notifications (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind VARCHAR(30) NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    related_id TEXT NOT NULL DEFAULT '',
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id) WHERE NOT is_read;
`

const migration004Down = `
DROP TABLE IF EXISTS notifications;
`
