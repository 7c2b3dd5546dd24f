package services

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Calendar pins every Day to noon of its calendar date in one location.
type Calendar struct {
	loc   *time.Location
	hour  int
	clock Clock
}

// NewCalendar loads the named IANA timezone. A nil clock means the system clock.
func NewCalendar(timezone string, noonHour int, clock Clock) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if noonHour < 0 || noonHour > 23 {
		return nil, fmt.Errorf("noon hour %d out of range", noonHour)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calendar{loc: loc, hour: noonHour, clock: clock}, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Today is the normalized instant of the current calendar date.
func (c *Calendar) Today() time.Time {
	return c.Normalize(c.clock.Now())
}

// Normalize maps t onto noon of its calendar date, returned in UTC.
func (c *Calendar) Normalize(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), c.hour, 0, 0, 0, c.loc).UTC()
}

// Bounds returns the UTC half-open interval covering t's calendar date.
func (c *Calendar) Bounds(t time.Time) (time.Time, time.Time) {
	lt := t.In(c.loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// sameDay reports whether a and b fall on the same calendar date.
func (c *Calendar) sameDay(a, b time.Time) bool {
	return c.Normalize(a).Equal(c.Normalize(b))
}

// ParseDate accepts a bare date (read in the calendar's location) or an RFC 3339 timestamp.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrValidation)
	}
	if t, err := time.ParseInLocation("2006-01-02", s, c.loc); err == nil {
		return c.Normalize(t), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return c.Normalize(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
}
