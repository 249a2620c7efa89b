package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// MasteryRepository implements mastery.Repository for PostgreSQL.
type MasteryRepository struct {
	conn *Connection
	now  func() time.Time
}

func NewMasteryRepository(conn *Connection, clock shared.Clock) *MasteryRepository {
	return &MasteryRepository{conn: conn, now: clock.Now}
}

const masteryColumns = `
	student_id, topic, problems_attempted, problems_correct,
	current_mastery, current_difficulty, created_at, updated_at`

func (r *MasteryRepository) Get(ctx context.Context, studentID, topic string) (*mastery.TopicMastery, error) {
	query := `SELECT ` + masteryColumns + ` FROM topic_mastery WHERE student_id = $1 AND topic = $2`
	return scanMastery(r.conn.q(ctx).QueryRow(ctx, query, studentID, mastery.NormalizeTopic(topic)))
}

// Record is one upsert. A new row gets the first attempt folded in already;
// an existing row is incremented in place with the same clamp and rounding
// as mastery.ClampDifficulty.
func (r *MasteryRepository) Record(ctx context.Context, studentID, topic string, correct bool, initialDifficulty float64) (*mastery.TopicMastery, error) {
	topic = mastery.NormalizeTopic(topic)
	if studentID == "" || topic == "" {
		return nil, shared.ValidationError("mastery", "Record", "student and topic are required")
	}

	var correctInc int64
	if correct {
		correctInc = 1
	}
	step := mastery.DifficultyStep(correct)
	first := mastery.ClampDifficulty(mastery.ClampDifficulty(initialDifficulty) + step)

	query := `
		INSERT INTO topic_mastery (` + masteryColumns + `)
		VALUES ($1, $2, 1, $3, $9, $4, $6, $6)
		ON CONFLICT (student_id, topic) DO UPDATE SET
			problems_attempted = topic_mastery.problems_attempted + 1,
			problems_correct = topic_mastery.problems_correct + $3,
			current_mastery = (topic_mastery.problems_correct + $3)::float8 / (topic_mastery.problems_attempted + 1),
			current_difficulty = LEAST($8, GREATEST($7, ROUND((topic_mastery.current_difficulty + $5)::numeric, 2)::float8)),
			updated_at = $6
		RETURNING ` + masteryColumns

	m, err := scanMastery(r.conn.q(ctx).QueryRow(ctx, query,
		studentID, topic, correctInc, first, step, r.now(),
		mastery.MinDifficulty, mastery.MaxDifficulty, float64(correctInc),
	))
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to record mastery: %w", err)
	}
	return m, nil
}

func (r *MasteryRepository) ListByStudent(ctx context.Context, studentID string) ([]*mastery.TopicMastery, error) {
	query := `SELECT ` + masteryColumns + ` FROM topic_mastery WHERE student_id = $1 ORDER BY topic`
	rows, err := r.conn.q(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastery: %w", err)
	}
	defer rows.Close()

	var out []*mastery.TopicMastery
	for rows.Next() {
		m, err := scanMastery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMastery(row pgx.Row) (*mastery.TopicMastery, error) {
	var m mastery.TopicMastery
	err := row.Scan(
		&m.StudentID,
		&m.Topic,
		&m.ProblemsAttempted,
		&m.ProblemsCorrect,
		&m.CurrentMastery,
		&m.CurrentDifficulty,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMasteryNotFound
		}
		return nil, err
	}
	return &m, nil
}
