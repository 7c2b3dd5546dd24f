package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarNormalizesToLocalNoon(t *testing.T) {
	cal, err := NewCalendar("Africa/Cairo", 12, FixedClock(cairoMorning))
	require.NoError(t, err)

	want := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, cal.Today())

	// 23:30 UTC on the 8th is already the 9th in Cairo
	assert.Equal(t, want, cal.Normalize(time.Date(2024, 3, 8, 23, 30, 0, 0, time.UTC)))
	assert.True(t, cal.sameDay(time.Date(2024, 3, 8, 22, 1, 0, 0, time.UTC), time.Date(2024, 3, 9, 21, 59, 0, 0, time.UTC)))
	assert.False(t, cal.sameDay(time.Date(2024, 3, 8, 21, 59, 0, 0, time.UTC), time.Date(2024, 3, 8, 22, 1, 0, 0, time.UTC)))

	start, end := cal.Bounds(cal.Today())
	assert.Equal(t, time.Date(2024, 3, 8, 22, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestCalendarParseDate(t *testing.T) {
	cal, err := NewCalendar("Africa/Cairo", 12, nil)
	require.NoError(t, err)

	want := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-09", "2024-03-09T00:30:00+02:00", "2024-03-08T23:00:00Z", "2024-03-09 18:00:00"} {
		got, err := cal.ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err = cal.ParseDate("09/03/2024")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = cal.ParseDate("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewCalendarRejectsBadInput(t *testing.T) {
	_, err := NewCalendar("Mars/Olympus", 12, nil)
	assert.Error(t, err)
	_, err = NewCalendar("UTC", 24, nil)
	assert.Error(t, err)
}
