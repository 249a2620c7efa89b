package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
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

// Migrator applies the embedded migrations, one transaction each.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return NewMigratorWithMigrations(conn, GetMigrations())
}

// NewMigratorWithMigrations creates a migrator with custom migrations.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: migrations,
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

	if _, err := m.conn.q(ctx).Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.q(ctx).Query(ctx, query)
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

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return n, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithinTx(ctx, func(ctx context.Context) error {
			q := m.conn.q(ctx)
			if _, err := q.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := q.Exec(ctx, insert, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return n, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		n++
	}
	return n, nil
}

// Rollback reverts the last applied migration. It returns the reverted
// version, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var lastVersion int
	for v := range applied {
		lastVersion = max(lastVersion, v)
	}
	if lastVersion == 0 {
		return 0, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	err = m.conn.WithinTx(ctx, func(ctx context.Context) error {
		q := m.conn.q(ctx)
		if _, err := q.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		del := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := q.Exec(ctx, del, lastVersion)
		return err
	})
	if err != nil {
		return 0, err
	}
	return lastVersion, nil
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
	return mergeStatus(m.migrations, applied), nil
}

func mergeStatus(migrations []Migration, applied map[int]time.Time) []Migration {
	result := make([]Migration, len(migrations))
	copy(result, migrations)
	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}
	return result
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_practice",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_rewards",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "attempt_sequence",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    total_xp BIGINT NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    xp_to_next_level BIGINT NOT NULL DEFAULT 0,
    coins BIGINT NOT NULL DEFAULT 0,
    gems BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    total_problems BIGINT NOT NULL DEFAULT 0,
    total_correct BIGINT NOT NULL DEFAULT 0,
    total_incorrect BIGINT NOT NULL DEFAULT 0,
    average_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_counters CHECK (total_xp >= 0 AND coins >= 0 AND gems >= 0),
    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND best_streak >= current_streak)
);

-- reset_lapsed_streaks scans only students with a live streak
CREATE INDEX IF NOT EXISTS idx_students_active_streak
    ON students(last_active_date) WHERE current_streak > 0;

CREATE TABLE IF NOT EXISTS student_inventory (
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    item_kind VARCHAR(20) NOT NULL,
    item_id TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    acquired_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, item_kind, item_id),
    CONSTRAINT valid_item_kind CHECK (item_kind IN ('avatar', 'pet', 'consumable')),
    CONSTRAINT valid_quantity CHECK (quantity > 0)
);
`

const migration001Down = `
DROP TABLE IF EXISTS student_inventory;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS problems (
    id TEXT PRIMARY KEY,
    point_value BIGINT NOT NULL,
    estimated_time_ms BIGINT NOT NULL DEFAULT 0,
    difficulty INTEGER NOT NULL DEFAULT 1,
    topic TEXT NOT NULL,
    grade_level INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_point_value CHECK (point_value >= 0),
    CONSTRAINT valid_estimated_time CHECK (estimated_time_ms >= 0)
);

CREATE TABLE IF NOT EXISTS practice_sessions (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ended_at TIMESTAMP WITH TIME ZONE,
    problems_attempted BIGINT NOT NULL DEFAULT 0,
    problems_correct BIGINT NOT NULL DEFAULT 0,
    problems_incorrect BIGINT NOT NULL DEFAULT 0,
    xp_earned BIGINT NOT NULL DEFAULT 0,
    coins_earned BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_student ON practice_sessions(student_id, started_at DESC);

-- Append-only log; attempt_number is 1-based per (student, problem)
CREATE TABLE IF NOT EXISTS problem_attempts (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    problem_id TEXT NOT NULL,
    session_id TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
    is_correct BOOLEAN NOT NULL,
    attempt_number INTEGER NOT NULL,
    time_spent_ms BIGINT NOT NULL,
    hints_used INTEGER NOT NULL DEFAULT 0,
    xp_earned BIGINT NOT NULL DEFAULT 0,
    coins_earned BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_attempt_number UNIQUE (student_id, problem_id, attempt_number),
    CONSTRAINT valid_attempt CHECK (attempt_number >= 1 AND time_spent_ms >= 0 AND hints_used >= 0)
);

CREATE INDEX IF NOT EXISTS idx_attempts_student_recent ON problem_attempts(student_id, created_at DESC);

CREATE TABLE IF NOT EXISTS topic_mastery (
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    topic TEXT NOT NULL,
    problems_attempted BIGINT NOT NULL DEFAULT 0,
    problems_correct BIGINT NOT NULL DEFAULT 0,
    current_mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_difficulty DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, topic),
    CONSTRAINT valid_difficulty CHECK (current_difficulty >= 1 AND current_difficulty <= 10)
);
`

const migration002Down = `
DROP TABLE IF EXISTS topic_mastery;
DROP TABLE IF EXISTS problem_attempts;
DROP TABLE IF EXISTS practice_sessions;
DROP TABLE IF EXISTS problems;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: COMBOS AND ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS combo_states (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    session_id TEXT NOT NULL,
    combo_count INTEGER NOT NULL,
    max_combo INTEGER NOT NULL,
    multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    bonus_coins BIGINT NOT NULL DEFAULT 0,
    bonus_xp BIGINT NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ended_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_combo CHECK (combo_count >= 0 AND max_combo >= combo_count)
);

-- At most one open combo per (student, session)
CREATE UNIQUE INDEX IF NOT EXISTS idx_combo_open
    ON combo_states(student_id, session_id) WHERE ended_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_combo_idle
    ON combo_states(updated_at) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS student_achievements (
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    achievement_key TEXT NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (student_id, achievement_key)
);
`

const migration003Down = `
DROP TABLE IF EXISTS student_achievements;
DROP TABLE IF EXISTS combo_states;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: ATTEMPT SEQUENCE
// Insertion order for attempts sharing a timestamp.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
ALTER TABLE problem_attempts ADD COLUMN IF NOT EXISTS seq BIGSERIAL;

DROP INDEX IF EXISTS idx_attempts_student_recent;
CREATE INDEX IF NOT EXISTS idx_attempts_student_recent ON problem_attempts(student_id, created_at DESC, seq DESC);
`

const migration004Down = `
DROP INDEX IF EXISTS idx_attempts_student_recent;
ALTER TABLE problem_attempts DROP COLUMN IF EXISTS seq;
CREATE INDEX IF NOT EXISTS idx_attempts_student_recent ON problem_attempts(student_id, created_at DESC);
`
