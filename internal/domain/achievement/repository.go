package achievement

import (
	"context"
	"time"
)

// Repository stores unlocks.
type Repository interface {
	// ListUnlocked returns every unlock of a student.
	ListUnlocked(ctx context.Context, studentID string) ([]StudentAchievement, error)

	// Unlock inserts the (student, key) row if absent. created is false when
	// the row already existed, including when a concurrent writer won.
	Unlock(ctx context.Context, studentID, key string, at time.Time) (created bool, err error)
}

// UnlockedSet indexes unlocks by key.
func UnlockedSet(list []StudentAchievement) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, a := range list {
		set[a.AchievementKey] = true
	}
	return set
}
