package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements activity.SessionRepository.
type SessionRepository struct {
	conn *Connection
}

func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `
	id, student_id, started_at, ended_at,
	problems_attempted, problems_correct, problems_incorrect, xp_earned, coins_earned`

func (r *SessionRepository) Create(ctx context.Context, s *activity.Session) error {
	query := `INSERT INTO practice_sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.conn.q(ctx).Exec(ctx, query,
		s.ID, s.StudentID, s.StartedAt, s.EndedAt,
		s.ProblemsAttempted, s.ProblemsCorrect, s.ProblemsIncorrect, s.XPEarned, s.CoinsEarned,
	)
	if err != nil {
		switch {
		case IsForeignKeyViolation(err):
			return shared.ErrStudentNotFound
		case IsUniqueViolation(err):
			return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*activity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM practice_sessions WHERE id = $1`
	var s activity.Session
	err := r.conn.q(ctx).QueryRow(ctx, query, id).Scan(
		&s.ID, &s.StudentID, &s.StartedAt, &s.EndedAt,
		&s.ProblemsAttempted, &s.ProblemsCorrect, &s.ProblemsIncorrect, &s.XPEarned, &s.CoinsEarned,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) ApplyDelta(ctx context.Context, id string, d activity.SessionDelta) error {
	query := `
		UPDATE practice_sessions SET
			problems_attempted = problems_attempted + $2,
			problems_correct = problems_correct + $3,
			problems_incorrect = problems_incorrect + $4,
			xp_earned = xp_earned + $5,
			coins_earned = coins_earned + $6
		WHERE id = $1
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query, id, d.Attempted, d.Correct, d.Incorrect, d.XP, d.Coins)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// End closes the session once. A second call reports ended=false.
func (r *SessionRepository) End(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.conn.q(ctx).Exec(ctx,
		`UPDATE practice_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements activity.AttemptRepository.
type AttemptRepository struct {
	conn *Connection
}

func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

const attemptColumns = `
	id, student_id, problem_id, session_id, is_correct, attempt_number,
	time_spent_ms, hints_used, xp_earned, coins_earned, created_at`

func (r *AttemptRepository) CountForProblem(ctx context.Context, studentID, problemID string) (int, error) {
	var n int
	err := r.conn.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM problem_attempts WHERE student_id = $1 AND problem_id = $2`,
		studentID, problemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}

// Append inserts an attempt. Two writers racing on the same attempt number
// hit the unique constraint; that is reported as a concurrent modification so
// the caller retries with a fresh count.
func (r *AttemptRepository) Append(ctx context.Context, a *activity.Attempt) error {
	query := `INSERT INTO problem_attempts (` + attemptColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.conn.q(ctx).Exec(ctx, query,
		a.ID, a.StudentID, a.ProblemID, a.SessionID, a.IsCorrect, a.AttemptNumber,
		a.TimeSpent.Milliseconds(), a.HintsUsed, a.XPEarned, a.CoinsEarned, a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("attempt", "Append", shared.ErrConcurrentModification, "attempt number already taken", err)
		}
		return fmt.Errorf("failed to append attempt: %w", err)
	}
	return nil
}

// recentAttemptsQuery breaks created_at ties by insertion order; attempt_number
// only counts per problem.
const recentAttemptsQuery = `
		SELECT ` + attemptColumns + `
		FROM problem_attempts
		WHERE student_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

func (r *AttemptRepository) Recent(ctx context.Context, studentID string, limit int) ([]*activity.Attempt, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.conn.q(ctx).Query(ctx, recentAttemptsQuery, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var out []*activity.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (*activity.Attempt, error) {
	var a activity.Attempt
	var timeSpentMS int64
	err := row.Scan(
		&a.ID, &a.StudentID, &a.ProblemID, &a.SessionID, &a.IsCorrect, &a.AttemptNumber,
		&timeSpentMS, &a.HintsUsed, &a.XPEarned, &a.CoinsEarned, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}
	a.TimeSpent = time.Duration(timeSpentMS) * time.Millisecond
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// ProblemCatalog implements activity.ProblemCatalog over the problems table.
type ProblemCatalog struct {
	conn *Connection
}

func NewProblemCatalog(conn *Connection) *ProblemCatalog {
	return &ProblemCatalog{conn: conn}
}

func (c *ProblemCatalog) GetProblem(ctx context.Context, id string) (*activity.Problem, error) {
	query := `
		SELECT id, point_value, estimated_time_ms, difficulty, topic, grade_level
		FROM problems WHERE id = $1
	`
	var p activity.Problem
	var estimatedMS int64
	err := c.conn.q(ctx).QueryRow(ctx, query, id).Scan(
		&p.ID, &p.PointValue, &estimatedMS, &p.Difficulty, &p.Topic, &p.GradeLevel,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProblemNotFound
		}
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}
	p.EstimatedTime = time.Duration(estimatedMS) * time.Millisecond
	return &p, nil
}

// Upsert inserts or replaces catalog metadata.
func (c *ProblemCatalog) Upsert(ctx context.Context, p *activity.Problem) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO problems (id, point_value, estimated_time_ms, difficulty, topic, grade_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			point_value = EXCLUDED.point_value,
			estimated_time_ms = EXCLUDED.estimated_time_ms,
			difficulty = EXCLUDED.difficulty,
			topic = EXCLUDED.topic,
			grade_level = EXCLUDED.grade_level
	`
	_, err := c.conn.q(ctx).Exec(ctx, query,
		p.ID, p.PointValue, p.EstimatedTime.Milliseconds(), p.Difficulty, p.Topic, p.GradeLevel)
	if err != nil {
		return fmt.Errorf("failed to upsert problem: %w", err)
	}
	return nil
}
