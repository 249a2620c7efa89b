// Package timeutil provides calendar-day arithmetic with a configurable
// timezone and day boundary. Streak tracking and the midnight batch jobs share
// one Calendar so that "today" means the same thing on both paths.
package timeutil

import (
	"fmt"
	"time"
)

// Calendar maps instants to calendar days.
//
// A day starts at BoundaryHour in Location. With BoundaryHour=4 an answer
// submitted at 02:30 local time still counts toward the previous day.
type Calendar struct {
	Location     *time.Location
	BoundaryHour int
}

// UTC is a calendar with midnight UTC boundaries.
var UTC = Calendar{Location: time.UTC}

// NewCalendar builds a Calendar from an IANA zone name.
func NewCalendar(zone string, boundaryHour int) (Calendar, error) {
	if boundaryHour < 0 || boundaryHour > 23 {
		return Calendar{}, fmt.Errorf("timeutil: boundary hour %d out of range [0,23]", boundaryHour)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Calendar{}, fmt.Errorf("timeutil: load location %q: %w", zone, err)
	}
	return Calendar{Location: loc, BoundaryHour: boundaryHour}, nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Day returns the calendar day containing t as a UTC-midnight date value.
// Two instants belong to the same day iff their Day values are equal.
func (c Calendar) Day(t time.Time) time.Time {
	local := t.In(c.location()).Add(-time.Duration(c.BoundaryHour) * time.Hour)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// NextBoundary returns the first day boundary strictly after t.
func (c Calendar) NextBoundary(t time.Time) time.Time {
	loc := c.location()
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.BoundaryHour, 0, 0, 0, loc)
	for !next.After(t) {
		next = time.Date(next.Year(), next.Month(), next.Day()+1, c.BoundaryHour, 0, 0, 0, loc)
	}
	return next
}

// FormatDate renders a Day value as YYYY-MM-DD.
func FormatDate(day time.Time) string {
	return day.Format("2006-01-02")
}
