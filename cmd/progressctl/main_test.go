package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/postgres"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	color.NoColor = true
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useMemoryStore(t *testing.T) {
	t.Setenv("BLAYSTORM_APP_STORE", "memory")
	t.Setenv("BLAYSTORM_REDIS_DISABLED", "true")
	t.Setenv("BLAYSTORM_LOG_LEVEL", "error")
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "progressctl", root.Use)

	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "jobs", "levels", "progress"})
}

func TestLevelsCommand(t *testing.T) {
	out, err := execute(t, "levels", "--up-to", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"1", "100", "100"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "282", "182"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"3", "519", "237"}, strings.Fields(lines[3]))
}

func TestLevelsCommand_XP(t *testing.T) {
	out, err := execute(t, "levels", "--xp", "300")
	require.NoError(t, err)
	assert.Equal(t, "xp=300 level=2 next_level_at=519\n", out)

	_, err = execute(t, "levels", "--up-to", "0")
	assert.Error(t, err)
}

func TestJobsRun_MemoryStore(t *testing.T) {
	useMemoryStore(t)

	out, err := execute(t, "jobs", "run", "reset_lapsed_streaks")
	require.NoError(t, err)
	assert.Contains(t, out, "reset=0\n")
	assert.Contains(t, out, "ok in ")

	_, err = execute(t, "jobs", "run", "nope")
	assert.ErrorContains(t, err, `unknown job "nope"`)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	useMemoryStore(t)

	_, err := execute(t, "migrate", "status")
	assert.ErrorContains(t, err, "migrations need the postgres store")
}

func TestPrintHealth(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)

	printHealth(cmd, &postgres.HealthStatus{
		Healthy:       true,
		PingLatency:   1500 * time.Microsecond,
		AcquiredConns: 1,
		IdleConns:     2,
		MaxConns:      10,
	})
	assert.Equal(t, "database: ok ping=1.5ms conns=1/10 idle=2\n", out.String())

	out.Reset()
	printHealth(cmd, &postgres.HealthStatus{Error: "connection refused"})
	assert.Equal(t, "database: unhealthy: connection refused\n", out.String())
}
