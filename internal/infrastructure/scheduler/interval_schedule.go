package scheduler

import (
	"fmt"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule fires once per calendar day, at the calendar's day boundary
// plus Offset. The streak reset uses it so "yesterday" matches the live path.
type DailySchedule struct {
	Calendar timeutil.Calendar
	Offset   time.Duration
}

func NewDailySchedule(cal timeutil.Calendar, offset time.Duration) *DailySchedule {
	return &DailySchedule{Calendar: cal, Offset: offset}
}

// Next returns the first boundary+Offset strictly after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	next := s.Calendar.NextBoundary(t.Add(-s.Offset)).Add(s.Offset)
	for !next.After(t) {
		next = s.Calendar.NextBoundary(next.Add(-s.Offset)).Add(s.Offset)
	}
	return next
}

func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily boundary=%02d:00 offset=%s", s.Calendar.BoundaryHour, s.Offset)
}
