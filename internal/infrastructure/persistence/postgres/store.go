package postgres

import (
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

// Store bundles the repositories over one connection.
type Store struct {
	*Connection

	students     *StudentRepository
	mastery      *MasteryRepository
	sessions     *SessionRepository
	attempts     *AttemptRepository
	problems     *ProblemCatalog
	combos       *ComboRepository
	achievements *AchievementRepository
}

func NewStore(conn *Connection, clock shared.Clock) *Store {
	return &Store{
		Connection:   conn,
		students:     NewStudentRepository(conn, clock),
		mastery:      NewMasteryRepository(conn, clock),
		sessions:     NewSessionRepository(conn),
		attempts:     NewAttemptRepository(conn),
		problems:     NewProblemCatalog(conn),
		combos:       NewComboRepository(conn),
		achievements: NewAchievementRepository(conn),
	}
}

func (s *Store) Students() student.Repository          { return s.students }
func (s *Store) Mastery() mastery.Repository           { return s.mastery }
func (s *Store) Sessions() activity.SessionRepository  { return s.sessions }
func (s *Store) Attempts() activity.AttemptRepository  { return s.attempts }
func (s *Store) Problems() activity.ProblemCatalog     { return s.problems }
func (s *Store) Combos() combo.Repository              { return s.combos }
func (s *Store) Achievements() achievement.Repository  { return s.achievements }
func (s *Store) ProblemCatalog() *ProblemCatalog       { return s.problems }
func (s *Store) StudentRepository() *StudentRepository { return s.students }
