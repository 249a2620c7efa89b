package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

// EnvPrefix is prepended to every environment key, e.g. BLAYSTORM_APP_TIMEZONE.
const EnvPrefix = "BLAYSTORM"

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Combo     ComboConfig     `mapstructure:"combo"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `mapstructure:"name"`
	Environment Environment `mapstructure:"environment"`
	Version     string      `mapstructure:"version"`

	// Timezone and DayBoundaryHour define the streak calendar day.
	Timezone        string `mapstructure:"timezone"`
	DayBoundaryHour int    `mapstructure:"day_boundary_hour"`

	// Store selects the repository backend: postgres or memory.
	Store string `mapstructure:"store"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings. URL wins over the
// individual fields when set.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`

	ProgressTTL         time.Duration `mapstructure:"progress_ttl"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	NotificationChannel string        `mapstructure:"notification_channel"`

	// Disabled falls back to the in-process session lock and no cache.
	Disabled bool `mapstructure:"disabled"`
}

// RabbitMQConfig holds the notification broker settings.
type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Queue    string `mapstructure:"queue"`

	ConnectAttempts uint          `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
}

// RewardsConfig mirrors reward.Policy.
type RewardsConfig struct {
	FirstTryBonus        int64   `mapstructure:"first_try_bonus"`
	SpeedBonus           int64   `mapstructure:"speed_bonus"`
	StreakMultiplier     float64 `mapstructure:"streak_multiplier"`
	StreakBonusThreshold int     `mapstructure:"streak_bonus_threshold"`
	CoinsPerCorrect      int64   `mapstructure:"coins_per_correct"`
	MaxTxAttempts        uint    `mapstructure:"max_tx_attempts"`
}

// Policy converts the settings into the reward formula constants.
func (r RewardsConfig) Policy() reward.Policy {
	return reward.Policy{
		FirstTryBonus:        r.FirstTryBonus,
		SpeedBonus:           r.SpeedBonus,
		StreakMultiplier:     r.StreakMultiplier,
		StreakBonusThreshold: r.StreakBonusThreshold,
		CoinsPerCorrect:      r.CoinsPerCorrect,
	}
}

// ComboConfig holds combo tracking settings.
type ComboConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl"`
	BatchSize   int           `mapstructure:"batch_size"`
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	HistorySize  int           `mapstructure:"history_size"`

	// StreakResetOffset delays the daily reset past the day boundary.
	StreakResetOffset  time.Duration `mapstructure:"streak_reset_offset"`
	StaleComboInterval time.Duration `mapstructure:"stale_combo_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	policy := reward.DefaultPolicy()

	defaults := map[string]any{
		"app.name":              "blaystorm-progress",
		"app.environment":       string(EnvDevelopment),
		"app.version":           "0.1.0",
		"app.timezone":          "UTC",
		"app.day_boundary_hour": 0,
		"app.store":             StorePostgres,
		"app.shutdown_timeout":  30 * time.Second,

		"database.url":                "",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.name":               "blaystorm",
		"database.user":               "postgres",
		"database.password":           "",
		"database.sslmode":            "disable",
		"database.max_conns":          10,
		"database.min_conns":          2,
		"database.max_conn_lifetime":  time.Hour,
		"database.max_conn_idle_time": 30 * time.Minute,
		"database.connect_timeout":    10 * time.Second,

		"redis.host":                 "localhost",
		"redis.port":                 6379,
		"redis.password":             "",
		"redis.db":                   0,
		"redis.pool_size":            10,
		"redis.min_idle_conns":       2,
		"redis.progress_ttl":         10 * time.Minute,
		"redis.lock_ttl":             30 * time.Second,
		"redis.notification_channel": "notifications",
		"redis.disabled":             false,

		"rabbitmq.enabled":          false,
		"rabbitmq.host":             "localhost",
		"rabbitmq.port":             5672,
		"rabbitmq.user":             "guest",
		"rabbitmq.password":         "guest",
		"rabbitmq.vhost":            "",
		"rabbitmq.queue":            "progress.notifications",
		"rabbitmq.connect_attempts": 5,
		"rabbitmq.connect_delay":    time.Second,

		"rewards.first_try_bonus":        policy.FirstTryBonus,
		"rewards.speed_bonus":            policy.SpeedBonus,
		"rewards.streak_multiplier":      policy.StreakMultiplier,
		"rewards.streak_bonus_threshold": policy.StreakBonusThreshold,
		"rewards.coins_per_correct":      policy.CoinsPerCorrect,
		"rewards.max_tx_attempts":        3,

		"combo.lock_timeout": 5 * time.Second,
		"combo.idle_ttl":     30 * time.Minute,
		"combo.batch_size":   500,

		"scheduler.enabled":              true,
		"scheduler.tick_interval":        time.Second,
		"scheduler.history_size":         100,
		"scheduler.streak_reset_offset":  5 * time.Minute,
		"scheduler.stale_combo_interval": 5 * time.Minute,

		"log.level":  "info",
		"log.format": "json",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads configuration from an optional .env file, an optional config
// file and BLAYSTORM_* environment variables, in increasing precedence.
// With an empty configFile, blaystorm.yaml is looked up in the working
// directory and silently skipped when absent.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("blaystorm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid and reports every problem.
func (c *Config) Validate() error {
	var errs []string

	if _, err := c.Calendar(); err != nil {
		errs = append(errs, err.Error())
	}

	switch c.App.Store {
	case StorePostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, "database.url or database.host is required for the postgres store")
		}
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, "the memory store is not allowed in production")
		}
	default:
		errs = append(errs, fmt.Sprintf("app.store must be %q or %q, got %q", StorePostgres, StoreMemory, c.App.Store))
	}

	if err := c.Rewards.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rewards: %v", err))
	}
	if c.Rewards.MaxTxAttempts == 0 {
		errs = append(errs, "rewards.max_tx_attempts must be at least 1")
	}

	if c.RabbitMQ.Enabled && c.RabbitMQ.Queue == "" {
		errs = append(errs, "rabbitmq.queue is required when rabbitmq is enabled")
	}

	if c.Combo.IdleTTL <= 0 {
		errs = append(errs, "combo.idle_ttl must be positive")
	}
	if c.Scheduler.Enabled && (c.Scheduler.TickInterval <= 0 || c.Scheduler.StaleComboInterval <= 0) {
		errs = append(errs, "scheduler intervals must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, "log.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Calendar builds the streak calendar from the app timezone settings.
func (c *Config) Calendar() (timeutil.Calendar, error) {
	return timeutil.NewCalendar(c.App.Timezone, c.App.DayBoundaryHour)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
