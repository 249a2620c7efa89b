package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, StorePostgres, cfg.App.Store)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Combo.IdleTTL)
	assert.Equal(t, reward.DefaultPolicy(), cfg.Rewards.Policy())
	assert.False(t, cfg.RabbitMQ.Enabled)

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 0, cal.BoundaryHour)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BLAYSTORM_APP_TIMEZONE", "Asia/Almaty")
	t.Setenv("BLAYSTORM_APP_DAY_BOUNDARY_HOUR", "4")
	t.Setenv("BLAYSTORM_DATABASE_MAX_CONNS", "20")
	t.Setenv("BLAYSTORM_COMBO_IDLE_TTL", "45m")
	t.Setenv("BLAYSTORM_REWARDS_COINS_PER_CORRECT", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Asia/Almaty", cfg.App.Timezone)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 45*time.Minute, cfg.Combo.IdleTTL)
	assert.Equal(t, int64(7), cfg.Rewards.Policy().CoinsPerCorrect)

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 4, cal.BoundaryHour)
	assert.Equal(t, "Asia/Almaty", cal.Location.String())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  store: memory
rabbitmq:
  enabled: true
  queue: rewards
scheduler:
  stale_combo_interval: 1m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.App.Store)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "rewards", cfg.RabbitMQ.Queue)
	assert.Equal(t, time.Minute, cfg.Scheduler.StaleComboInterval)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("BLAYSTORM_APP_DAY_BOUNDARY_HOUR", "24")
	t.Setenv("BLAYSTORM_APP_STORE", "sqlite")
	t.Setenv("BLAYSTORM_REWARDS_STREAK_MULTIPLIER", "0.5")

	_, err := Load("")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "boundary hour 24")
	assert.Contains(t, msg, `app.store must be "postgres" or "memory"`)
	assert.Contains(t, msg, "rewards:")
}

func TestValidate_MemoryStoreRejectedInProduction(t *testing.T) {
	t.Setenv("BLAYSTORM_APP_ENVIRONMENT", "production")
	t.Setenv("BLAYSTORM_APP_STORE", "memory")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}
