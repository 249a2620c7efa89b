package mastery

import "math"

// Source tells where a target difficulty came from.
type Source string

const (
	SourceTopic Source = "topic"
	SourceLevel Source = "level"
)

// Range is an inclusive difficulty interval.
type Range struct {
	Min float64
	Max float64
}

// GradeBand is an inclusive grade-level interval.
type GradeBand struct {
	Min int
	Max int
}

// Target is what the problem selector asks for.
type Target struct {
	Difficulty       float64
	DifficultyWindow Range
	GradeWindow      GradeBand
	Source           Source
}

// FallbackDifficulty derives a difficulty from the student level for topics
// with no history.
func FallbackDifficulty(level int) int {
	var d int
	switch {
	case level <= 5:
		d = min(level, 3)
	case level <= 15:
		d = min(level/3+2, 6)
	default:
		d = min(level/5+4, 10)
	}
	return max(d, int(MinDifficulty))
}

// TargetFor builds the selection target. m may be nil when the student has
// never attempted the topic.
func TargetFor(m *TopicMastery, level int) Target {
	if m != nil {
		return newTarget(m.CurrentDifficulty, SourceTopic)
	}
	return newTarget(float64(FallbackDifficulty(level)), SourceLevel)
}

func newTarget(d float64, src Source) Target {
	d = ClampDifficulty(d)
	grade := int(math.Round(d))
	return Target{
		Difficulty: d,
		DifficultyWindow: Range{
			Min: math.Max(MinDifficulty, d-1),
			Max: math.Min(MaxDifficulty, d+1),
		},
		GradeWindow: GradeBand{
			Min: max(1, grade-1),
			Max: grade + 1,
		},
		Source: src,
	}
}
