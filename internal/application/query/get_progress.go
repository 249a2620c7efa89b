package query

import (
	"context"
	"fmt"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Builds the student's progress card: level bar, wallet, streak, accuracy,
// per-topic mastery and unlocked achievements. Served from cache when
// possible; writers invalidate after each change.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery asks for a student's progress card.
type GetProgressQuery struct {
	StudentID string `json:"student_id" validate:"required"`

	// SkipCache forces a read from the store.
	SkipCache bool `json:"skip_cache"`
}

// TopicProgress is one topic row of the card.
type TopicProgress struct {
	Topic             string  `json:"topic"`
	Mastery           float64 `json:"mastery"`
	Difficulty        float64 `json:"difficulty"`
	ProblemsAttempted int64   `json:"problems_attempted"`
	ProblemsCorrect   int64   `json:"problems_correct"`
}

// ProgressView is the cached progress card.
type ProgressView struct {
	StudentID string `json:"student_id"`

	Level         int   `json:"level"`
	TotalXP       int64 `json:"total_xp"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
	// LevelProgress is the share of the current level already earned, in [0,1].
	LevelProgress float64 `json:"level_progress"`

	Coins int64 `json:"coins"`
	Gems  int64 `json:"gems"`

	CurrentStreak int        `json:"current_streak"`
	BestStreak    int        `json:"best_streak"`
	LastActive    *time.Time `json:"last_active,omitempty"`

	TotalProblems   int64   `json:"total_problems"`
	TotalCorrect    int64   `json:"total_correct"`
	AverageAccuracy float64 `json:"average_accuracy"`

	Topics       []TopicProgress `json:"topics"`
	Achievements []string        `json:"achievements"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ProgressCache stores progress cards.
type ProgressCache interface {
	// Get returns found=false on a miss.
	Get(ctx context.Context, studentID string) (view *ProgressView, found bool, err error)
	Set(ctx context.Context, view *ProgressView) error
	Invalidate(ctx context.Context, studentID string) error
}

// ProgressHandler handles the GetProgressQuery.
type ProgressHandler struct {
	students     student.Repository
	mastery      mastery.Repository
	achievements achievement.Repository
	cache        ProgressCache
	now          func() time.Time
	log          *logger.Logger
}

// NewProgressHandler creates a new ProgressHandler. cache may be nil.
func NewProgressHandler(
	students student.Repository,
	masteryRepo mastery.Repository,
	achievements achievement.Repository,
	cache ProgressCache,
	log *logger.Logger,
) *ProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressHandler{
		students:     students,
		mastery:      masteryRepo,
		achievements: achievements,
		cache:        cache,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log.With(logger.Component("get_progress")),
	}
}

// Handle executes the query.
func (h *ProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressView, error) {
	if err := validation.Default().Struct("student", "GetProgress", q); err != nil {
		return nil, fmt.Errorf("get_progress: validation failed: %w", err)
	}

	if h.cache != nil && !q.SkipCache {
		view, found, err := h.cache.Get(ctx, q.StudentID)
		if err != nil {
			h.log.Warn("progress cache read failed", logger.StudentID(q.StudentID), logger.Err(err))
		} else if found {
			return view, nil
		}
	}

	view, err := h.build(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, view); err != nil {
			h.log.Warn("progress cache write failed", logger.StudentID(q.StudentID), logger.Err(err))
		}
	}
	return view, nil
}

func (h *ProgressHandler) build(ctx context.Context, studentID string) (*ProgressView, error) {
	st, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	topics, err := h.mastery.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mastery: %w", err)
	}
	unlocked, err := h.achievements.ListUnlocked(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	view := &ProgressView{
		StudentID:       st.ID,
		Level:           st.CurrentLevel,
		TotalXP:         st.TotalXP,
		XPToNextLevel:   st.XPToNextLevel,
		LevelProgress:   levelProgress(st),
		Coins:           st.Coins,
		Gems:            st.Gems,
		CurrentStreak:   st.CurrentStreak,
		BestStreak:      st.BestStreak,
		LastActive:      st.LastActiveDate,
		TotalProblems:   st.TotalProblems,
		TotalCorrect:    st.TotalCorrect,
		AverageAccuracy: st.AverageAccuracy,
		Topics:          make([]TopicProgress, 0, len(topics)),
		Achievements:    make([]string, 0, len(unlocked)),
		GeneratedAt:     h.now(),
	}
	for _, m := range topics {
		view.Topics = append(view.Topics, TopicProgress{
			Topic:             m.Topic,
			Mastery:           m.CurrentMastery,
			Difficulty:        m.CurrentDifficulty,
			ProblemsAttempted: m.ProblemsAttempted,
			ProblemsCorrect:   m.ProblemsCorrect,
		})
	}
	for _, a := range unlocked {
		view.Achievements = append(view.Achievements, a.AchievementKey)
	}
	return view, nil
}

func levelProgress(st *student.State) float64 {
	floor := student.XPRequired(st.CurrentLevel)
	span := student.XPRequired(st.CurrentLevel+1) - floor
	if span <= 0 {
		return 1
	}
	p := float64(st.TotalXP-floor) / float64(span)
	return min(max(p, 0), 1)
}
