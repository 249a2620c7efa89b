package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_DayUTC(t *testing.T) {
	a := time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC)
	b := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	c := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, UTC.Day(a), UTC.Day(b))
	assert.Equal(t, UTC.Day(b).AddDate(0, 0, 1), UTC.Day(c))
	assert.Equal(t, time.UTC, UTC.Day(a).Location())
}

func TestCalendar_BoundaryHour(t *testing.T) {
	cal := Calendar{Location: time.UTC, BoundaryHour: 4}

	lateNight := time.Date(2024, 3, 11, 2, 30, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	morning := time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC)

	assert.Equal(t, cal.Day(evening), cal.Day(lateNight))
	assert.Equal(t, cal.Day(lateNight).AddDate(0, 0, 1), cal.Day(morning))
	assert.Equal(t, "2024-03-10", FormatDate(cal.Day(lateNight)))
}

func TestCalendar_Timezone(t *testing.T) {
	cal, err := NewCalendar("Asia/Almaty", 0)
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Almaty.
	instant := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-11", FormatDate(cal.Day(instant)))
	assert.Equal(t, "2024-03-10", FormatDate(UTC.Day(instant)))
}

func TestCalendar_DayAcrossDST(t *testing.T) {
	cal, err := NewCalendar("America/New_York", 0)
	require.NoError(t, err)

	// The 23-hour day of the spring change still maps to whole days.
	before := time.Date(2024, 3, 10, 0, 30, 0, 0, cal.Location)
	after := time.Date(2024, 3, 11, 0, 30, 0, 0, cal.Location)
	assert.Equal(t, "2024-03-10", FormatDate(cal.Day(before)))
	assert.Equal(t, "2024-03-11", FormatDate(cal.Day(after)))
	assert.Equal(t, 24*time.Hour, cal.Day(after).Sub(cal.Day(before)))
}

func TestCalendar_NextBoundary(t *testing.T) {
	cal := Calendar{Location: time.UTC, BoundaryHour: 4}

	next := cal.NextBoundary(time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC), next)

	next = cal.NextBoundary(time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC), next)
}

func TestNewCalendar_Invalid(t *testing.T) {
	_, err := NewCalendar("UTC", 24)
	assert.Error(t, err)

	_, err = NewCalendar("Not/AZone", 0)
	assert.Error(t, err)
}
