package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/saga"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/lock"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/memory"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(_ context.Context, studentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, studentID)
	return nil
}

type fixture struct {
	store     *memory.Store
	clock     *testClock
	pub       *recordingPublisher
	cache     *invalidations
	evaluator *saga.AchievementEvaluator
	combos    *ComboTracker
	record    *RecordAttemptHandler
	start     *StartSessionHandler
	end       *EndSessionHandler
	register  *RegisterStudentHandler
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	catalog *achievement.Catalog
	locker  combo.SessionLocker
}

func withCatalog(c *achievement.Catalog) fixtureOption {
	return func(fc *fixtureConfig) { fc.catalog = c }
}

func withLocker(l combo.SessionLocker) fixtureOption {
	return func(fc *fixtureConfig) { fc.locker = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fc := fixtureConfig{catalog: achievement.DefaultCatalog, locker: lock.NewLocal()}
	for _, o := range opts {
		o(&fc)
	}

	clock := &testClock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
	store := memory.NewStore().WithClock(clock.Now)
	ids := idgen.NewSequence("id")
	pub := &recordingPublisher{}
	cache := &invalidations{}

	evaluator := saga.NewAchievementEvaluator(
		fc.catalog, store.Achievements(), store.Attempts(), store.Students(),
		clock, saga.DefaultAchievementFlowConfig(), nil,
	)
	combos := NewComboTracker(
		store, store.Combos(), store.Students(), fc.locker, evaluator,
		ids, clock, DefaultComboTrackerConfig(), nil,
	)
	record, err := NewRecordAttemptHandler(RecordAttemptDeps{
		Tx:        store,
		Students:  store.Students(),
		Sessions:  store.Sessions(),
		Attempts:  store.Attempts(),
		Problems:  store.Problems(),
		Mastery:   store.Mastery(),
		Evaluator: evaluator,
		Combos:    combos,
		Publisher: pub,
		Cache:     cache,
		IDs:       ids,
		Clock:     clock,
	}, DefaultRecordAttemptConfig())
	require.NoError(t, err)

	start := NewStartSessionHandler(StartSessionDeps{
		Tx:        store,
		Students:  store.Students(),
		Sessions:  store.Sessions(),
		Evaluator: evaluator,
		Publisher: pub,
		Cache:     cache,
		Calendar:  timeutil.UTC,
		IDs:       ids,
		Clock:     clock,
	})

	return &fixture{
		store:     store,
		clock:     clock,
		pub:       pub,
		cache:     cache,
		evaluator: evaluator,
		combos:    combos,
		record:    record,
		start:     start,
		end:       NewEndSessionHandler(store.Sessions(), combos, pub, clock, nil),
		register:  NewRegisterStudentHandler(store.Students(), clock, nil),
	}
}

func (f *fixture) registerStudent(t *testing.T, id string) {
	t.Helper()
	_, err := f.register.Handle(context.Background(), RegisterStudentCommand{StudentID: id})
	require.NoError(t, err)
}

func (f *fixture) startSession(t *testing.T, studentID string) string {
	t.Helper()
	res, err := f.start.Handle(context.Background(), StartSessionCommand{StudentID: studentID})
	require.NoError(t, err)
	return res.Session.ID
}

// openSession creates a session without touching the streak.
func (f *fixture) openSession(t *testing.T, studentID, sessionID string) {
	t.Helper()
	s, err := activity.NewSession(sessionID, studentID, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Sessions().Create(context.Background(), s))
}

func (f *fixture) addProblem(id string, points int64, estimated time.Duration, topic string) {
	f.store.PutProblem(&activity.Problem{
		ID:            id,
		PointValue:    points,
		EstimatedTime: estimated,
		Difficulty:    1,
		Topic:         topic,
		GradeLevel:    3,
	})
}

func (f *fixture) answer(t *testing.T, studentID, sessionID, problemID string, correct bool) *AttemptResult {
	t.Helper()
	res, err := f.record.Handle(context.Background(), RecordAttemptCommand{
		StudentID: studentID,
		ProblemID: problemID,
		SessionID: sessionID,
		IsCorrect: correct,
		TimeSpent: 10 * time.Second,
	})
	require.NoError(t, err)
	return res
}
