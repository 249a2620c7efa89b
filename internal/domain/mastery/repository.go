package mastery

import "context"

// Repository persists topic mastery rows.
type Repository interface {
	// Get returns ErrMasteryNotFound when the student never attempted the topic.
	Get(ctx context.Context, studentID, topic string) (*TopicMastery, error)

	// Record creates the row if absent, starting at initialDifficulty, then
	// folds in one attempt as a single atomic update and returns the result.
	Record(ctx context.Context, studentID, topic string, correct bool, initialDifficulty float64) (*TopicMastery, error)

	// ListByStudent returns every topic row of a student, ordered by topic.
	ListByStudent(ctx context.Context, studentID string) ([]*TopicMastery, error)
}
