// Package app wires the progression services from configuration. The worker
// and progressctl binaries both build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/KaripeHS/BlayStorm-sub001/config"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/command"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/eventhandler"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/query"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/saga"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/lock"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/messaging"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/memory"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/postgres"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/redis"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler/jobs"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

// Repositories is the store surface the services need. Both the Postgres and
// the in-memory store provide it.
type Repositories interface {
	shared.Transactor
	Students() student.Repository
	Mastery() mastery.Repository
	Sessions() activity.SessionRepository
	Attempts() activity.AttemptRepository
	Problems() activity.ProblemCatalog
	Combos() combo.Repository
	Achievements() achievement.Repository
}

var (
	_ Repositories = (*postgres.Store)(nil)
	_ Repositories = (*memory.Store)(nil)
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Calendar timeutil.Calendar
	Clock    shared.Clock
	Store    Repositories

	Bus       *messaging.InMemoryEventBus
	Scheduler *scheduler.Scheduler

	RegisterStudent  *command.RegisterStudentHandler
	StartSession     *command.StartSessionHandler
	EndSession       *command.EndSessionHandler
	RecordAttempt    *command.RecordAttemptHandler
	Combos           *command.ComboTracker
	Progress         *query.ProgressHandler
	TargetDifficulty *query.TargetDifficultyHandler

	closers []func()
}

// NewSlogLogger builds the infrastructure logger from the log settings.
func NewSlogLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func slogLevel(s string) slog.Level {
	switch logger.ParseLevel(s) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenPostgres connects to the configured database.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Connection, error) {
	pg := postgres.DefaultConfig()
	pg.URL = cfg.URL
	pg.Host = cfg.Host
	pg.Port = cfg.Port
	pg.Database = cfg.Name
	pg.User = cfg.User
	pg.Password = cfg.Password
	pg.SSLMode = cfg.SSLMode
	pg.MaxConns = cfg.MaxConns
	pg.MinConns = cfg.MinConns
	pg.MaxConnLifetime = cfg.MaxConnLifetime
	pg.MaxConnIdleTime = cfg.MaxConnIdleTime
	pg.ConnectTimeout = cfg.ConnectTimeout
	return postgres.NewConnection(ctx, pg)
}

// Options tweaks New.
type Options struct {
	// Migrate applies pending migrations after connecting to Postgres.
	Migrate bool

	// Clock overrides the system clock.
	Clock shared.Clock
}

// New connects the configured backends and wires every service. Call Close
// to release them.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (a *App, err error) {
	if log == nil {
		log = slog.Default()
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = shared.SystemClock
	}

	a = &App{Config: cfg, Logger: log, Calendar: cal, Clock: clock}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.openStore(ctx, opts.Migrate); err != nil {
		return nil, err
	}

	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		cache, err = a.openRedis()
		if err != nil {
			// The service still works without Redis, only single-node.
			log.Warn("redis unavailable, using in-process lock and no cache", "error", err)
			cache, err = nil, nil
		}
	}

	appLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Log.Level),
		AddCaller: true,
	})

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	a.Bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, func() { _ = a.Bus.Close() })

	sinks, err := a.openSinks(ctx, cache)
	if err != nil {
		return nil, err
	}
	notify := eventhandler.NewNotifyHandler(sinks, idgen.UUID{}, eventhandler.DefaultNotifyConfig(), log)
	if err := notify.Register(a.Bus); err != nil {
		return nil, fmt.Errorf("failed to register notification handler: %w", err)
	}

	var locker combo.SessionLocker = lock.NewLocal()
	var progressCache query.ProgressCache
	if cache != nil {
		lockCfg := redis.DefaultSessionLockConfig()
		lockCfg.TTL = cfg.Redis.LockTTL
		locker = redis.NewSessionLocker(cache, lockCfg, log)
		progressCache = redis.NewProgressCache(cache, cfg.Redis.ProgressTTL)
	}

	a.wireServices(locker, progressCache, appLog)
	a.wireScheduler()

	log.Info("progression services ready",
		"store", cfg.App.Store,
		"redis", cache != nil,
		"sinks", len(sinks),
		"timezone", cfg.App.Timezone,
		"day_boundary_hour", cfg.App.DayBoundaryHour,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, migrate bool) error {
	if a.Config.App.Store == config.StoreMemory {
		a.Store = memory.NewStore().WithClock(a.Clock.Now)
		return nil
	}

	conn, err := OpenPostgres(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, conn.Close)

	if migrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.Info("database schema is up to date", "applied", n)
	}
	a.Store = postgres.NewStore(conn, a.Clock)
	return nil
}

func (a *App) openRedis() (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Host = a.Config.Redis.Host
	rc.Port = a.Config.Redis.Port
	rc.Password = a.Config.Redis.Password
	rc.DB = a.Config.Redis.DB
	if a.Config.Redis.PoolSize > 0 {
		rc.PoolSize = a.Config.Redis.PoolSize
	}
	rc.MinIdleConns = a.Config.Redis.MinIdleConns

	cache, err := redis.NewCache(rc)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	return cache, nil
}

func (a *App) openSinks(ctx context.Context, cache *redis.Cache) ([]notification.Sink, error) {
	sinks := []notification.Sink{messaging.NewLogSink(a.Logger, slog.LevelInfo)}

	if cache != nil {
		sinks = append(sinks, redis.NewPubSubSink(cache, a.Config.Redis.NotificationChannel))
	}

	if rc := a.Config.RabbitMQ; rc.Enabled {
		sink, err := messaging.DialRabbitMQ(ctx, messaging.RabbitMQConfig{
			Host:            rc.Host,
			Port:            strconv.Itoa(rc.Port),
			User:            rc.User,
			Password:        rc.Password,
			VHost:           rc.VHost,
			Queue:           rc.Queue,
			ConnectAttempts: rc.ConnectAttempts,
			ConnectDelay:    rc.ConnectDelay,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, func() { _ = sink.Close() })
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func (a *App) wireServices(locker combo.SessionLocker, cache query.ProgressCache, log *logger.Logger) {
	s := a.Store
	ids := idgen.UUID{}

	evaluator := saga.NewAchievementEvaluator(
		achievement.DefaultCatalog,
		s.Achievements(),
		s.Attempts(),
		s.Students(),
		a.Clock,
		saga.DefaultAchievementFlowConfig(),
		log,
	)

	comboCfg := command.DefaultComboTrackerConfig()
	if a.Config.Combo.LockTimeout > 0 {
		comboCfg.LockTimeout = a.Config.Combo.LockTimeout
	}
	a.Combos = command.NewComboTracker(s, s.Combos(), s.Students(), locker, evaluator, ids, a.Clock, comboCfg, log)

	// The interface value must stay nil when there is no cache.
	var invalidator command.ProgressInvalidator
	if cache != nil {
		invalidator = cache
	}

	a.RegisterStudent = command.NewRegisterStudentHandler(s.Students(), a.Clock, log)
	a.StartSession = command.NewStartSessionHandler(command.StartSessionDeps{
		Tx:        s,
		Students:  s.Students(),
		Sessions:  s.Sessions(),
		Evaluator: evaluator,
		Publisher: a.Bus,
		Cache:     invalidator,
		Calendar:  a.Calendar,
		IDs:       ids,
		Clock:     a.Clock,
		Log:       log,
	})
	a.EndSession = command.NewEndSessionHandler(s.Sessions(), a.Combos, a.Bus, a.Clock, log)
	a.Progress = query.NewProgressHandler(s.Students(), s.Mastery(), s.Achievements(), cache, log)
	a.TargetDifficulty = query.NewTargetDifficultyHandler(s.Students(), s.Mastery())

	recordCfg := command.DefaultRecordAttemptConfig()
	recordCfg.Policy = a.Config.Rewards.Policy()
	recordCfg.MaxTxAttempts = a.Config.Rewards.MaxTxAttempts
	// Validated by config.Validate.
	a.RecordAttempt, _ = command.NewRecordAttemptHandler(command.RecordAttemptDeps{
		Tx:        s,
		Students:  s.Students(),
		Sessions:  s.Sessions(),
		Attempts:  s.Attempts(),
		Problems:  s.Problems(),
		Mastery:   s.Mastery(),
		Evaluator: evaluator,
		Combos:    a.Combos,
		Publisher: a.Bus,
		Cache:     invalidator,
		IDs:       ids,
		Clock:     a.Clock,
		Log:       log,
	}, recordCfg)
}

func (a *App) wireScheduler() {
	sc := a.Config.Scheduler
	a.Scheduler = scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         a.Logger,
		Now:            a.Clock.Now,
		TickInterval:   sc.TickInterval,
		MaxHistorySize: sc.HistorySize,
		EnableMetrics:  true,
	})

	resetJob := jobs.NewResetLapsedStreaksJob(a.Store.Students(), a.Calendar, a.Clock, a.Logger)
	staleJob := jobs.NewCloseStaleCombosJob(a.Store.Combos(), a.Combos, a.Bus, a.Clock, jobs.CloseStaleCombosConfig{
		IdleTTL:   a.Config.Combo.IdleTTL,
		BatchSize: a.Config.Combo.BatchSize,
	}, a.Logger)

	// Names are unique constants, registration cannot fail.
	_ = a.Scheduler.Register(resetJob, scheduler.NewDailySchedule(a.Calendar, sc.StreakResetOffset))
	_ = a.Scheduler.Register(staleJob, scheduler.NewIntervalSchedule(sc.StaleComboInterval))
}

// RunJob executes one scheduled job immediately.
func (a *App) RunJob(ctx context.Context, name string) (*scheduler.JobResult, error) {
	res, err := a.Scheduler.RunNow(ctx, name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		names := make([]string, 0, 2)
		for _, j := range a.Scheduler.ListJobs() {
			names = append(names, j.Name)
		}
		return nil, fmt.Errorf("unknown job %q, available: %s", name, strings.Join(names, ", "))
	}
	return res, err
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		_ = a.Scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
