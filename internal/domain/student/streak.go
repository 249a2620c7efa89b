package student

import (
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

// Streak is the daily login streak.
type Streak struct {
	Current        int
	Best           int
	LastActiveDate *time.Time
}

// StreakOutcome tells what a session start did to the streak.
type StreakOutcome int

const (
	StreakUnchanged StreakOutcome = iota
	StreakStarted
	StreakExtended
	StreakReset
)

func (o StreakOutcome) String() string {
	switch o {
	case StreakUnchanged:
		return "unchanged"
	case StreakStarted:
		return "started"
	case StreakExtended:
		return "extended"
	case StreakReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Changed reports whether the outcome mutated the streak.
func (o StreakOutcome) Changed() bool { return o != StreakUnchanged }

// RecordSessionStart advances the streak for a session starting at now.
// Calling it again on the same calendar day is a no-op.
func (s Streak) RecordSessionStart(cal timeutil.Calendar, now time.Time) (Streak, StreakOutcome) {
	today := cal.Day(now)

	var outcome StreakOutcome
	switch {
	case s.LastActiveDate == nil:
		s.Current = 1
		outcome = StreakStarted
	default:
		// LastActiveDate is already a day value; re-deriving it through the
		// calendar would shift it by the boundary hour.
		diff := int(today.Sub(*s.LastActiveDate).Hours() / 24)
		switch {
		case diff <= 0:
			return s, StreakUnchanged
		case diff == 1:
			s.Current++
			outcome = StreakExtended
		default:
			s.Current = 1
			outcome = StreakReset
		}
	}

	if s.Current > s.Best {
		s.Best = s.Current
	}
	s.LastActiveDate = &today
	return s, outcome
}

// LapsedBefore returns the last day value that still keeps a streak alive at
// now. Students with LastActiveDate before it have lapsed.
func LapsedBefore(cal timeutil.Calendar, now time.Time) time.Time {
	return cal.Day(now).AddDate(0, 0, -1)
}
