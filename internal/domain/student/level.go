package student

import "math"

// MaxLevel bounds the level scan. No realistic XP total reaches it.
const MaxLevel = 1000

// XPRequired returns the total XP needed to reach level:
// floor(100 * level^1.5). It is strictly increasing for level >= 1.
func XPRequired(level int) int64 {
	if level <= 0 {
		return 0
	}
	// floor(100 * L^1.5) == floor(sqrt(10000 * L^3)), computed in integers.
	l := int64(level)
	return isqrt(10000 * l * l * l)
}

func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// Progress is the derived level state for an XP total.
type Progress struct {
	Level     int
	XPForNext int64
}

// LevelFor returns the largest level whose requirement is at most xp.
// Students below XPRequired(1) are level 0.
func LevelFor(xp int64) Progress {
	level := 0
	for l := 1; l <= MaxLevel && XPRequired(l) <= xp; l++ {
		level = l
	}
	return Progress{Level: level, XPForNext: XPRequired(level + 1)}
}
