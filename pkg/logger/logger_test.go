package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: LevelDebug})
	child := base.With(StudentID("s-1"), Component("attempts"))

	child.Info("recorded", XPAmount(42), Err(errors.New("boom")))
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	fields := lines[0]["fields"].(map[string]any)
	assert.Equal(t, "s-1", fields["student_id"])
	assert.Equal(t, "attempts", fields["component"])
	assert.Equal(t, float64(42), fields["xp_amount"])
	assert.Equal(t, "boom", fields["error"])

	_, hasFields := lines[1]["fields"]
	assert.False(t, hasFields, "parent must not inherit child fields")
}

func TestLogger_Caller(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, AddCaller: true})
	log.Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["caller"], "logger_test.go:")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestFromContext(t *testing.T) {
	log := Nop()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
