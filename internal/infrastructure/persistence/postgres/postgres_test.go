package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=blaystorm user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)

	cfg.URL = "postgres://user@host:notaport/db"
	_, err = cfg.PoolConfig()
	assert.Error(t, err)
}

func TestGetMigrations(t *testing.T) {
	migs := GetMigrations()
	require.Len(t, migs, 4)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
	assert.Contains(t, migs[2].UpSQL, "WHERE ended_at IS NULL")
	assert.Contains(t, migs[2].UpSQL, "PRIMARY KEY (student_id, achievement_key)")
	assert.Contains(t, migs[3].UpSQL, "seq BIGSERIAL")
}

func TestRecentAttemptsOrder(t *testing.T) {
	assert.Contains(t, recentAttemptsQuery, "ORDER BY created_at DESC, seq DESC")
	assert.NotContains(t, recentAttemptsQuery, "attempt_number DESC")
}

func TestMergeStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	status := mergeStatus(GetMigrations(), map[int]time.Time{1: at})

	require.Len(t, status, 4)
	assert.True(t, status[0].IsApplied)
	assert.Equal(t, at, status[0].AppliedAt)
	assert.False(t, status[1].IsApplied)
	assert.False(t, GetMigrations()[0].IsApplied, "source slice untouched")
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.True(t, IsConflict(serialization))
	assert.True(t, IsConflict(deadlock))
	assert.False(t, IsConflict(errors.New("plain")))

	mapped := mapTxError(serialization)
	assert.ErrorIs(t, mapped, shared.ErrConcurrentModification)
	assert.True(t, shared.IsRetryable(mapped))

	plain := errors.New("plain")
	assert.Same(t, plain, mapTxError(plain))
}

func TestInTx(t *testing.T) {
	assert.False(t, inTx(context.Background()))
}
