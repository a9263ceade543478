package recur

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
	dateLayout  = "20060102"
)

// Clock returns the current instant. Every operation that needs "now"
// reads it through the engine's Clock so tests can freeze it.
type Clock func() time.Time

// Stamp is a compact DTSTART/UNTIL value: YYYYMMDD, YYYYMMDDTHHMM or
// YYYYMMDDTHHMMSS, optionally followed by the UTC marker Z.
type Stamp struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int

	// UTC is set when the stamp carries the trailing Z.
	UTC bool
	// DateOnly is set for the 8-digit form.
	DateOnly bool
}

var errBadStamp = errors.New("malformed stamp")

// ParseStamp parses a compact stamp.
func ParseStamp(s string) (Stamp, error) {
	var st Stamp
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		st.UTC = true
		s = strings.TrimSuffix(s, "Z")
	}

	switch len(s) {
	case 8:
		st.DateOnly = true
	case 13, 15:
		if s[8] != 'T' {
			return Stamp{}, fmt.Errorf("%w: %q", errBadStamp, s)
		}
	default:
		return Stamp{}, fmt.Errorf("%w: %q", errBadStamp, s)
	}

	var bad bool
	num := func(from, to int) int {
		v, err := strconv.Atoi(s[from:to])
		if err != nil || v < 0 {
			bad = true
		}
		return v
	}
	st.Year = num(0, 4)
	st.Month = time.Month(num(4, 6))
	st.Day = num(6, 8)
	if !st.DateOnly {
		st.Hour = num(9, 11)
		st.Minute = num(11, 13)
		if len(s) == 15 {
			st.Second = num(13, 15)
		}
	}
	if bad {
		return Stamp{}, fmt.Errorf("%w: %q", errBadStamp, s)
	}

	// Reject values that time.Date would silently normalise.
	check := time.Date(st.Year, st.Month, st.Day, st.Hour, st.Minute, st.Second, 0, time.UTC)
	if check.Year() != st.Year || check.Month() != st.Month || check.Day() != st.Day ||
		check.Hour() != st.Hour || check.Minute() != st.Minute || check.Second() != st.Second {
		return Stamp{}, fmt.Errorf("%w: %q out of range", errBadStamp, s)
	}
	return st, nil
}

// IsMidnight reports whether the time-of-day part is 00:00:00.
func (s Stamp) IsMidnight() bool {
	return s.Hour == 0 && s.Minute == 0 && s.Second == 0
}

// Instant resolves the stamp: UTC stamps are absolute, the others are wall
// clock in loc.
func (s Stamp) Instant(loc *time.Location) time.Time {
	if s.UTC {
		return time.Date(s.Year, s.Month, s.Day, s.Hour, s.Minute, s.Second, 0, time.UTC)
	}
	return time.Date(s.Year, s.Month, s.Day, s.Hour, s.Minute, s.Second, 0, loc)
}

// Floating returns the stamp digits as a UTC time, ignoring its form.
func (s Stamp) Floating() time.Time {
	return time.Date(s.Year, s.Month, s.Day, s.Hour, s.Minute, s.Second, 0, time.UTC)
}

func (s Stamp) String() string {
	if s.DateOnly {
		return s.Floating().Format(dateLayout)
	}
	if s.UTC {
		return s.Floating().Format(utcLayout)
	}
	return s.Floating().Format(localLayout)
}

// FormatUTC renders an instant as a UTC stamp, e.g. 20250909T073000Z.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// dateStamp renders the calendar date of t as seen in loc, at T000000Z.
// The digits are the caller's date, not the UTC date of the instant.
func dateStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout) + "T000000Z"
}

// untilStamp renders the calendar date of t in loc at the last second of
// the day, UTC-marked.
func untilStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout) + "T235959Z"
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// onDate combines the calendar date of day (in loc) with the wall clock of
// clock (in loc).
func onDate(day, clock time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	c := clock.In(loc)
	return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), 0, loc)
}
