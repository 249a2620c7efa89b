// Package memory is an in-process implementation of every progression
// repository. It backs the service tests and single-node local runs.
//
// All repositories share one mutex. WithinTx holds it for the whole callback
// and restores a snapshot if the callback fails, which gives the same
// all-or-nothing behavior as the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

// Store holds all progression data in maps.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	data data
}

type data struct {
	students map[string]*student.State
	items    map[string]map[string]reward.ItemRef
	mastery  map[string]*mastery.TopicMastery
	combos   map[string]*combo.State
	unlocks  map[string]map[string]achievement.StudentAchievement
	sessions map[string]*activity.Session
	problems map[string]*activity.Problem
	attempts []*activity.Attempt
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now: func() time.Time { return time.Now().UTC() },
		data: data{
			students: make(map[string]*student.State),
			items:    make(map[string]map[string]reward.ItemRef),
			mastery:  make(map[string]*mastery.TopicMastery),
			combos:   make(map[string]*combo.State),
			unlocks:  make(map[string]map[string]achievement.StudentAchievement),
			sessions: make(map[string]*activity.Session),
			problems: make(map[string]*activity.Problem),
		},
	}
}

// WithClock overrides the time source used for UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

type txKey struct{}

// WithinTx implements shared.Transactor. Nested calls join the outer
// transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snap
			panic(p)
		}
		if err != nil {
			s.data = snap
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless ctx already holds it through WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (d data) clone() data {
	c := data{
		students: make(map[string]*student.State, len(d.students)),
		items:    make(map[string]map[string]reward.ItemRef, len(d.items)),
		mastery:  make(map[string]*mastery.TopicMastery, len(d.mastery)),
		combos:   make(map[string]*combo.State, len(d.combos)),
		unlocks:  make(map[string]map[string]achievement.StudentAchievement, len(d.unlocks)),
		sessions: make(map[string]*activity.Session, len(d.sessions)),
		problems: d.problems,
		attempts: d.attempts[:len(d.attempts):len(d.attempts)],
	}
	for k, v := range d.students {
		c.students[k] = v.Clone()
	}
	for k, v := range d.items {
		inner := make(map[string]reward.ItemRef, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		c.items[k] = inner
	}
	for k, v := range d.mastery {
		m := *v
		c.mastery[k] = &m
	}
	for k, v := range d.combos {
		c.combos[k] = v.Clone()
	}
	for k, v := range d.unlocks {
		inner := make(map[string]achievement.StudentAchievement, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		c.unlocks[k] = inner
	}
	for k, v := range d.sessions {
		c.sessions[k] = v.Clone()
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// Students returns the student repository view.
func (s *Store) Students() student.Repository { return studentRepo{s} }

type studentRepo struct{ s *Store }

func (r studentRepo) Create(ctx context.Context, st *student.State) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.data.students[st.ID]; exists {
		return shared.ErrStudentAlreadyExists
	}
	c := st.Clone()
	c.Recompute()
	r.s.data.students[st.ID] = c
	return nil
}

func (r studentRepo) GetByID(ctx context.Context, id string) (*student.State, error) {
	defer r.s.lock(ctx)()
	st, ok := r.s.data.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st.Clone(), nil
}

func (r studentRepo) GetForUpdate(ctx context.Context, id string) (*student.State, error) {
	return r.GetByID(ctx, id)
}

func (r studentRepo) ApplyDelta(ctx context.Context, id string, d student.Delta) (*student.State, student.LevelChange, error) {
	if err := d.Validate(); err != nil {
		return nil, student.LevelChange{}, err
	}
	defer r.s.lock(ctx)()
	st, ok := r.s.data.students[id]
	if !ok {
		return nil, student.LevelChange{}, shared.ErrStudentNotFound
	}
	change := st.Apply(d, r.s.now())
	return st.Clone(), change, nil
}

func (r studentRepo) SaveStreak(ctx context.Context, id string, streak student.Streak) error {
	defer r.s.lock(ctx)()
	st, ok := r.s.data.students[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	st.SetStreak(streak)
	st.UpdatedAt = r.s.now()
	return nil
}

func (r studentRepo) AddItems(ctx context.Context, id string, items []reward.ItemRef) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.students[id]; !ok {
		return shared.ErrStudentNotFound
	}
	inv, ok := r.s.data.items[id]
	if !ok {
		inv = make(map[string]reward.ItemRef)
		r.s.data.items[id] = inv
	}
	for _, it := range items {
		key := string(it.Kind) + ":" + it.ID
		cur, exists := inv[key]
		switch {
		case !exists:
			inv[key] = it
		case it.Kind == reward.ItemConsumable:
			cur.Quantity += it.Quantity
			inv[key] = cur
		}
	}
	return nil
}

func (r studentRepo) ResetLapsedStreaks(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, st := range r.s.data.students {
		if st.CurrentStreak > 0 && st.LastActiveDate != nil && st.LastActiveDate.Before(before) {
			st.CurrentStreak = 0
			st.UpdatedAt = r.s.now()
			n++
		}
	}
	return n, nil
}

// Inventory returns a student's items sorted by kind and ID.
func (s *Store) Inventory(studentID string) []reward.ItemRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reward.ItemRef, 0, len(s.data.items[studentID]))
	for _, it := range s.data.items[studentID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC MASTERY
// ══════════════════════════════════════════════════════════════════════════════

// Mastery returns the topic mastery repository view.
func (s *Store) Mastery() mastery.Repository { return masteryRepo{s} }

type masteryRepo struct{ s *Store }

func masteryKey(studentID, topic string) string {
	return studentID + "|" + mastery.NormalizeTopic(topic)
}

func (r masteryRepo) Get(ctx context.Context, studentID, topic string) (*mastery.TopicMastery, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.data.mastery[masteryKey(studentID, topic)]
	if !ok {
		return nil, shared.ErrMasteryNotFound
	}
	c := *m
	return &c, nil
}

func (r masteryRepo) Record(ctx context.Context, studentID, topic string, correct bool, initialDifficulty float64) (*mastery.TopicMastery, error) {
	defer r.s.lock(ctx)()
	now := r.s.now()
	key := masteryKey(studentID, topic)
	m, ok := r.s.data.mastery[key]
	if !ok {
		var err error
		m, err = mastery.New(studentID, topic, initialDifficulty, now)
		if err != nil {
			return nil, err
		}
		r.s.data.mastery[key] = m
	}
	m.Record(correct, now)
	c := *m
	return &c, nil
}

func (r masteryRepo) ListByStudent(ctx context.Context, studentID string) ([]*mastery.TopicMastery, error) {
	defer r.s.lock(ctx)()
	var out []*mastery.TopicMastery
	for _, m := range r.s.data.mastery {
		if m.StudentID == studentID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMBOS
// ══════════════════════════════════════════════════════════════════════════════

// Combos returns the combo repository view.
func (s *Store) Combos() combo.Repository { return comboRepo{s} }

type comboRepo struct{ s *Store }

func (r comboRepo) GetActive(ctx context.Context, studentID, sessionID string) (*combo.State, error) {
	defer r.s.lock(ctx)()
	for _, c := range r.s.data.combos {
		if c.StudentID == studentID && c.SessionID == sessionID && c.IsActive() {
			return c.Clone(), nil
		}
	}
	return nil, shared.ErrNoActiveCombo
}

func (r comboRepo) Save(ctx context.Context, st *combo.State) error {
	defer r.s.lock(ctx)()
	if st.IsActive() {
		for id, c := range r.s.data.combos {
			if id != st.ID && c.StudentID == st.StudentID && c.SessionID == st.SessionID && c.IsActive() {
				return shared.NewDomainError("combo", "Save", shared.ErrAlreadyExists, "session already has an open combo")
			}
		}
	}
	r.s.data.combos[st.ID] = st.Clone()
	return nil
}

func (r comboRepo) ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*combo.State, error) {
	defer r.s.lock(ctx)()
	var out []*combo.State
	for _, c := range r.s.data.combos {
		if c.IsActive() && c.UpdatedAt.Before(idleSince) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Achievements returns the unlock repository view.
func (s *Store) Achievements() achievement.Repository { return achievementRepo{s} }

type achievementRepo struct{ s *Store }

func (r achievementRepo) ListUnlocked(ctx context.Context, studentID string) ([]achievement.StudentAchievement, error) {
	defer r.s.lock(ctx)()
	out := make([]achievement.StudentAchievement, 0, len(r.s.data.unlocks[studentID]))
	for _, a := range r.s.data.unlocks[studentID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementKey < out[j].AchievementKey })
	return out, nil
}

func (r achievementRepo) Unlock(ctx context.Context, studentID, key string, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	set, ok := r.s.data.unlocks[studentID]
	if !ok {
		set = make(map[string]achievement.StudentAchievement)
		r.s.data.unlocks[studentID] = set
	}
	if _, exists := set[key]; exists {
		return false, nil
	}
	set[key] = achievement.StudentAchievement{StudentID: studentID, AchievementKey: key, UnlockedAt: at}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS, ATTEMPTS, PROBLEMS
// ══════════════════════════════════════════════════════════════════════════════

// Sessions returns the session repository view.
func (s *Store) Sessions() activity.SessionRepository { return sessionRepo{s} }

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, sess *activity.Session) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.data.sessions[sess.ID]; exists {
		return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
	}
	r.s.data.sessions[sess.ID] = sess.Clone()
	return nil
}

func (r sessionRepo) GetByID(ctx context.Context, id string) (*activity.Session, error) {
	defer r.s.lock(ctx)()
	sess, ok := r.s.data.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (r sessionRepo) ApplyDelta(ctx context.Context, id string, d activity.SessionDelta) error {
	defer r.s.lock(ctx)()
	sess, ok := r.s.data.sessions[id]
	if !ok {
		return shared.ErrSessionNotFound
	}
	sess.Apply(d)
	return nil
}

func (r sessionRepo) End(ctx context.Context, id string, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	sess, ok := r.s.data.sessions[id]
	if !ok {
		return false, shared.ErrSessionNotFound
	}
	if !sess.IsActive() {
		return false, nil
	}
	sess.EndedAt = &at
	return true, nil
}

// Attempts returns the attempt log view.
func (s *Store) Attempts() activity.AttemptRepository { return attemptRepo{s} }

type attemptRepo struct{ s *Store }

func (r attemptRepo) CountForProblem(ctx context.Context, studentID, problemID string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, a := range r.s.data.attempts {
		if a.StudentID == studentID && a.ProblemID == problemID {
			n++
		}
	}
	return n, nil
}

func (r attemptRepo) Append(ctx context.Context, a *activity.Attempt) error {
	defer r.s.lock(ctx)()
	c := *a
	r.s.data.attempts = append(r.s.data.attempts, &c)
	return nil
}

func (r attemptRepo) Recent(ctx context.Context, studentID string, limit int) ([]*activity.Attempt, error) {
	defer r.s.lock(ctx)()
	var out []*activity.Attempt
	for i := len(r.s.data.attempts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if a := r.s.data.attempts[i]; a.StudentID == studentID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// Problems returns the problem catalog view.
func (s *Store) Problems() activity.ProblemCatalog { return problemCatalog{s} }

type problemCatalog struct{ s *Store }

func (c problemCatalog) GetProblem(ctx context.Context, id string) (*activity.Problem, error) {
	defer c.s.lock(ctx)()
	p, ok := c.s.data.problems[id]
	if !ok {
		return nil, shared.ErrProblemNotFound
	}
	cp := *p
	return &cp, nil
}

// PutProblem adds or replaces catalog metadata.
func (s *Store) PutProblem(p *activity.Problem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.data.problems[p.ID] = &cp
}

var _ shared.Transactor = (*Store)(nil)
