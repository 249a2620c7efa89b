package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMBOS
// ══════════════════════════════════════════════════════════════════════════════

// ComboRepository implements combo.Repository. The partial unique index
// idx_combo_open keeps one open combo per (student, session).
type ComboRepository struct {
	conn *Connection
}

func NewComboRepository(conn *Connection) *ComboRepository {
	return &ComboRepository{conn: conn}
}

const comboColumns = `
	id, student_id, session_id, combo_count, max_combo, multiplier,
	bonus_coins, bonus_xp, started_at, updated_at, ended_at`

func (r *ComboRepository) GetActive(ctx context.Context, studentID, sessionID string) (*combo.State, error) {
	query := `
		SELECT ` + comboColumns + `
		FROM combo_states
		WHERE student_id = $1 AND session_id = $2 AND ended_at IS NULL
	`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	s, err := scanCombo(r.conn.q(ctx).QueryRow(ctx, query, studentID, sessionID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNoActiveCombo
		}
		return nil, fmt.Errorf("failed to get active combo: %w", err)
	}
	return s, nil
}

func (r *ComboRepository) Save(ctx context.Context, s *combo.State) error {
	query := `
		INSERT INTO combo_states (` + comboColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			combo_count = EXCLUDED.combo_count,
			max_combo = EXCLUDED.max_combo,
			multiplier = EXCLUDED.multiplier,
			bonus_coins = EXCLUDED.bonus_coins,
			bonus_xp = EXCLUDED.bonus_xp,
			updated_at = EXCLUDED.updated_at,
			ended_at = EXCLUDED.ended_at
	`
	_, err := r.conn.q(ctx).Exec(ctx, query,
		s.ID, s.StudentID, s.SessionID, s.ComboCount, s.MaxCombo, s.Multiplier,
		s.BonusCoins, s.BonusXP, s.StartedAt, s.UpdatedAt, s.EndedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("combo", "Save", shared.ErrAlreadyExists, "session already has an open combo")
		}
		return fmt.Errorf("failed to save combo: %w", err)
	}
	return nil
}

func (r *ComboRepository) ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*combo.State, error) {
	query := `
		SELECT ` + comboColumns + `
		FROM combo_states
		WHERE ended_at IS NULL AND updated_at < $1
		ORDER BY updated_at
	`
	args := []interface{}{idleSince}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.conn.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle combos: %w", err)
	}
	defer rows.Close()

	var out []*combo.State
	for rows.Next() {
		s, err := scanCombo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan combo: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanCombo(row pgx.Row) (*combo.State, error) {
	var s combo.State
	err := row.Scan(
		&s.ID, &s.StudentID, &s.SessionID, &s.ComboCount, &s.MaxCombo, &s.Multiplier,
		&s.BonusCoins, &s.BonusXP, &s.StartedAt, &s.UpdatedAt, &s.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	conn *Connection
}

func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

func (r *AchievementRepository) ListUnlocked(ctx context.Context, studentID string) ([]achievement.StudentAchievement, error) {
	query := `
		SELECT student_id, achievement_key, unlocked_at
		FROM student_achievements
		WHERE student_id = $1
		ORDER BY achievement_key
	`
	rows, err := r.conn.q(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []achievement.StudentAchievement
	for rows.Next() {
		var a achievement.StudentAchievement
		if err := rows.Scan(&a.StudentID, &a.AchievementKey, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Unlock relies on the primary key: whoever inserts first gets created=true.
func (r *AchievementRepository) Unlock(ctx context.Context, studentID, key string, at time.Time) (bool, error) {
	query := `
		INSERT INTO student_achievements (student_id, achievement_key, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, achievement_key) DO NOTHING
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query, studentID, key, at)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.ErrStudentNotFound
		}
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
