package model

import (
	"fmt"
	"time"
)

// dayLayout is the vendor's date format and the persisted cursor format.
const dayLayout = "2006-01-02"

// Day is a calendar date without a time of day. The zero value means
// "no day" and is used for categories that have never been fetched.
type Day struct {
	t time.Time // midnight UTC of the date
}

// NewDay builds a Day from its calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return NewDay(y, m, d)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.t.IsZero() }

// AddDays returns d shifted by n calendar days.
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Day) After(other Day) bool { return d.t.After(other.t) }

// Equal reports whether d and other are the same date.
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }

// Time returns midnight UTC of the date.
func (d Day) Time() time.Time { return d.t }

// String formats d as YYYY-MM-DD, or "" for the zero Day.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}
