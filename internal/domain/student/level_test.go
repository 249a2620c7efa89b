package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPRequired(t *testing.T) {
	assert.Equal(t, int64(0), XPRequired(0))
	assert.Equal(t, int64(100), XPRequired(1))
	assert.Equal(t, int64(282), XPRequired(2))
	assert.Equal(t, int64(519), XPRequired(3))
	assert.Equal(t, int64(800), XPRequired(4))
	assert.Equal(t, int64(1118), XPRequired(5))
	assert.Equal(t, int64(2700), XPRequired(9))
	assert.Equal(t, int64(100000), XPRequired(100))
}

func TestXPRequired_StrictlyIncreasing(t *testing.T) {
	for l := 1; l < MaxLevel; l++ {
		assert.Greater(t, XPRequired(l+1), XPRequired(l), "level %d", l)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp        int64
		level     int
		xpForNext int64
	}{
		{0, 0, 100},
		{99, 0, 100},
		{100, 1, 282},
		{281, 1, 282},
		{282, 2, 519},
		{1118, 5, 1469},
	}
	for _, tt := range tests {
		got := LevelFor(tt.xp)
		assert.Equal(t, tt.level, got.Level, "xp=%d", tt.xp)
		assert.Equal(t, tt.xpForNext, got.XPForNext, "xp=%d", tt.xp)
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 50000; xp += 37 {
		lvl := LevelFor(xp).Level
		assert.GreaterOrEqual(t, lvl, prev, "xp=%d", xp)
		prev = lvl
	}
}
