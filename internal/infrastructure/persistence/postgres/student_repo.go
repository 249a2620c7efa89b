package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
	now  func() time.Time
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection, clock shared.Clock) *StudentRepository {
	return &StudentRepository{conn: conn, now: clock.Now}
}

const studentColumns = `
	id, total_xp, current_level, xp_to_next_level, coins, gems,
	current_streak, best_streak, last_active_date,
	total_problems, total_correct, total_incorrect, average_accuracy,
	created_at, updated_at`

// Create inserts a new student row.
func (r *StudentRepository) Create(ctx context.Context, s *student.State) error {
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.conn.q(ctx).Exec(ctx, query,
		s.ID,
		s.TotalXP,
		s.CurrentLevel,
		s.XPToNextLevel,
		s.Coins,
		s.Gems,
		s.CurrentStreak,
		s.BestStreak,
		s.LastActiveDate,
		s.TotalProblems,
		s.TotalCorrect,
		s.TotalIncorrect,
		s.AverageAccuracy,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.State, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	return r.scanStudent(r.conn.q(ctx).QueryRow(ctx, query, id))
}

// GetForUpdate locks the row until the surrounding transaction ends. Outside
// a transaction it is a plain read.
func (r *StudentRepository) GetForUpdate(ctx context.Context, id string) (*student.State, error) {
	if !inTx(ctx) {
		return r.GetByID(ctx, id)
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 FOR UPDATE`
	return r.scanStudent(r.conn.q(ctx).QueryRow(ctx, query, id))
}

// ApplyDelta increments the counters in place, then writes the level and
// accuracy derived from the new totals. The first UPDATE holds the row lock,
// so the second always sees its own result.
func (r *StudentRepository) ApplyDelta(ctx context.Context, id string, d student.Delta) (*student.State, student.LevelChange, error) {
	if err := d.Validate(); err != nil {
		return nil, student.LevelChange{}, err
	}

	var (
		st     *student.State
		change student.LevelChange
	)
	err := r.conn.WithinTx(ctx, func(ctx context.Context) error {
		q := r.conn.q(ctx)
		now := r.now()

		increment := `
			UPDATE students SET
				total_xp = total_xp + $2,
				coins = coins + $3,
				gems = gems + $4,
				total_problems = total_problems + $5,
				total_correct = total_correct + $6,
				total_incorrect = total_incorrect + $7,
				updated_at = $8
			WHERE id = $1
			RETURNING ` + studentColumns
		var err error
		st, err = r.scanStudent(q.QueryRow(ctx, increment, id, d.XP, d.Coins, d.Gems, d.Problems, d.Correct, d.Incorrect, now))
		if err != nil {
			return err
		}

		change.OldLevel = st.CurrentLevel
		st.Recompute()
		change.NewLevel = st.CurrentLevel

		derived := `
			UPDATE students SET
				current_level = $2,
				xp_to_next_level = $3,
				average_accuracy = $4
			WHERE id = $1
		`
		_, err = q.Exec(ctx, derived, id, st.CurrentLevel, st.XPToNextLevel, st.AverageAccuracy)
		return err
	})
	if err != nil {
		return nil, student.LevelChange{}, fmt.Errorf("failed to apply delta: %w", err)
	}
	return st, change, nil
}

// SaveStreak overwrites the streak fields.
func (r *StudentRepository) SaveStreak(ctx context.Context, id string, st student.Streak) error {
	query := `
		UPDATE students SET
			current_streak = $2,
			best_streak = $3,
			last_active_date = $4,
			updated_at = $5
		WHERE id = $1
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query, id, st.Current, st.Best, st.LastActiveDate, r.now())
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// AddItems upserts inventory rows. Avatars and pets are unique unlocks;
// consumables stack.
func (r *StudentRepository) AddItems(ctx context.Context, id string, items []reward.ItemRef) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO student_inventory (student_id, item_kind, item_id, quantity, acquired_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, item_kind, item_id) DO UPDATE
			SET quantity = student_inventory.quantity + EXCLUDED.quantity
			WHERE student_inventory.item_kind = 'consumable'
	`
	now := r.now()
	batch := &pgx.Batch{}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		batch.Queue(query, id, string(it.Kind), it.ID, it.Quantity, now)
	}

	results := r.conn.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrStudentNotFound
			}
			return fmt.Errorf("failed to add inventory item: %w", err)
		}
	}
	return nil
}

// Inventory lists a student's items ordered by kind and ID.
func (r *StudentRepository) Inventory(ctx context.Context, id string) ([]reward.ItemRef, error) {
	query := `
		SELECT item_kind, item_id, quantity
		FROM student_inventory
		WHERE student_id = $1
		ORDER BY item_kind, item_id
	`
	rows, err := r.conn.q(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var items []reward.ItemRef
	for rows.Next() {
		var it reward.ItemRef
		var kind string
		if err := rows.Scan(&kind, &it.ID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		it.Kind = reward.ItemKind(kind)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ResetLapsedStreaks zeroes live streaks whose last active day is before the
// given day. It touches only rows that still need it, so reruns are no-ops.
func (r *StudentRepository) ResetLapsedStreaks(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE students SET current_streak = 0, updated_at = $2
		WHERE current_streak > 0 AND last_active_date < $1
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query, before, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset lapsed streaks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *StudentRepository) scanStudent(row pgx.Row) (*student.State, error) {
	var s student.State
	err := row.Scan(
		&s.ID,
		&s.TotalXP,
		&s.CurrentLevel,
		&s.XPToNextLevel,
		&s.Coins,
		&s.Gems,
		&s.CurrentStreak,
		&s.BestStreak,
		&s.LastActiveDate,
		&s.TotalProblems,
		&s.TotalCorrect,
		&s.TotalIncorrect,
		&s.AverageAccuracy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	return &s, nil
}
