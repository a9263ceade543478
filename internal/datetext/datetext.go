// Package datetext finds the first date and time expression in free text,
// e.g. "next Friday at 3pm", "December 1", "in 3 days" or "tomorrow
// morning", and resolves it against a reference instant.
//
// Matching and clustering run on olebedev/when: every expression form is a
// rules.F registered on a when.Parser, so a date and a time a few characters
// apart combine into one result. Resolution looks forward: a month-day
// without a year, a bare month and a bare weekday resolve to their next
// occurrence on or after the reference date, never to one in the past.
package datetext

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
)

// Result is a resolved expression.
type Result struct {
	// Time is the resolved instant in the reference's location. It is
	// midnight unless HasTime is set.
	Time    time.Time
	HasDate bool
	HasTime bool
	// Text is the matched part of the input.
	Text string
}

type clock struct{ hour, minute int }

// dateRule resolves a date (at midnight of ref's location) from the
// captured groups of a match.
type dateRule struct {
	re      *regexp.Regexp
	resolve func(g []string, ref time.Time) (time.Time, *clock, bool)
}

type timeRule struct {
	re      *regexp.Regexp
	resolve func(g []string) (clock, bool)
}

const (
	monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
	dayNames   = `mon(?:day)?|tue(?:s(?:day)?)?|wed(?:nesday)?|thu(?:r(?:s(?:day)?)?)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?`
	countWords = `\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve`
)

// Rules are registered shortest form first. When a match is nested in a
// longer one starting at the same offset, the cluster then ends at the
// longer match.
var dateRules = []dateRule{
	{
		re: regexp.MustCompile(`\b(today|tonight|tomorrow|tmrw|yesterday|now)\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			day := midnight(ref)
			switch g[0] {
			case "tomorrow", "tmrw":
				return day.AddDate(0, 0, 1), nil, true
			case "yesterday":
				return day.AddDate(0, 0, -1), nil, true
			case "tonight":
				return day, &clock{20, 0}, true
			case "now":
				return day, &clock{ref.Hour(), ref.Minute()}, true
			}
			return day, nil, true
		},
	},
	{
		re: regexp.MustCompile(`\bin\s+(` + countWords + `)\s+(minute|min|hour|hr|day|week|month|year)s?\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			n, ok := count(g[0])
			if !ok {
				return time.Time{}, nil, false
			}
			return shift(ref, g[1], n)
		},
	},
	{
		re: regexp.MustCompile(`\b(` + countWords + `)\s+(minute|min|hour|hr|day|week|month|year)s?\s+ago\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			n, ok := count(g[0])
			if !ok {
				return time.Time{}, nil, false
			}
			return shift(ref, g[1], -n)
		},
	},
	{
		re: regexp.MustCompile(`\b(this|next|last)\s+(week|month|year)\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			n := map[string]int{"this": 0, "next": 1, "last": -1}[g[0]]
			return shift(ref, g[1], n)
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(this|next)\s+)?(weekend)\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			day := midnight(ref)
			switch day.Weekday() {
			case time.Saturday, time.Sunday:
				if g[0] != "next" {
					return day, nil, true
				}
			}
			if g[0] == "next" {
				return resolveWeekday(day, time.Saturday, "next"), nil, true
			}
			sat := day.AddDate(0, 0, (int(time.Saturday-day.Weekday())+7)%7)
			return sat, nil, true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(this|next|last)\s+)?(` + dayNames + `)\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			wd, ok := weekday(g[1])
			if !ok {
				return time.Time{}, nil, false
			}
			return resolveWeekday(midnight(ref), wd, g[0]), nil, true
		},
	},
	{
		// A bare month means its first day.
		re: regexp.MustCompile(`\b(` + monthNames + `)\b(?:\s+(\d{4})\b)?`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			return monthDay(ref, g[0], "1", g[1])
		},
	},
	{
		// December 25, December 25th 2026, Dec. 1, 2026
		re: regexp.MustCompile(`\b(` + monthNames + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			return monthDay(ref, g[0], g[1], g[2])
		},
	},
	{
		// 25 December, 25th of December 2026
		re: regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthNames + `)\b(?:,?\s+(\d{4})\b)?`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			return monthDay(ref, g[1], g[0], g[2])
		},
	},
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			y, _ := strconv.Atoi(g[0])
			m, _ := strconv.Atoi(g[1])
			d, _ := strconv.Atoi(g[2])
			t, ok := validDate(y, m, d, ref.Location())
			return t, nil, ok
		},
	},
	{
		// M/D and M/D/YYYY
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`),
		resolve: func(g []string, ref time.Time) (time.Time, *clock, bool) {
			m, _ := strconv.Atoi(g[0])
			d, _ := strconv.Atoi(g[1])
			if g[2] == "" {
				return forwardDate(ref, m, d)
			}
			y, _ := strconv.Atoi(g[2])
			if y < 100 {
				y += 2000
			}
			t, ok := validDate(y, m, d, ref.Location())
			return t, nil, ok
		},
	},
}

var timeRules = []timeRule{
	{
		re: regexp.MustCompile(`\b(noon|midday|midnight|morning|afternoon|evening|tonight)\b`),
		resolve: func(g []string) (clock, bool) {
			switch g[0] {
			case "noon", "midday":
				return clock{12, 0}, true
			case "midnight":
				return clock{0, 0}, true
			case "morning":
				return clock{9, 0}, true
			case "afternoon":
				return clock{15, 0}, true
			case "evening":
				return clock{18, 0}, true
			}
			return clock{20, 0}, true
		},
	},
	{
		re:      regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b()`),
		resolve: clockFrom,
	},
	{
		re:      regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am\b|pm\b|a\.m\.|p\.m\.)`),
		resolve: clockFrom,
	},
	{
		re:      regexp.MustCompile(`\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am\b|pm\b|a\.m\.|p\.m\.)?(?:[^\d:]|$)`),
		resolve: clockFrom,
	},
}

// Date rules are registered ahead of time rules and applied in that order,
// so a time of day always lands on the date already chosen.
var options = &rules.Options{
	Distance:     5,
	MatchByOrder: true,
}

type span struct{ left, right int }

func (s span) size() int { return s.right - s.left }

func (s span) overlaps(o span) bool {
	return s.left < o.right && o.left < s.right
}

// resolution tracks the winning date and time matches of one Parse call.
// The longest match of each kind wins; a time that overlaps the chosen date
// ("tonight" in "tonight at 9pm") is ignored.
type resolution struct {
	date, tod        span
	hasDate, hasTime bool
	implied          bool
}

func (r *resolution) dateApplier(dr dateRule) rules.Rule {
	return &rules.F{
		RegExp: dr.re,
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			s := span{m.Left, m.Right}
			if r.hasDate && s.size() <= r.date.size() {
				return false, nil
			}
			day, implied, ok := dr.resolve(m.Captures, ref)
			if !ok {
				return false, nil
			}
			r.date, r.hasDate, r.implied = s, true, implied != nil

			c.Duration = day.Sub(ref)
			c.Hour, c.Minute, c.Second = nil, nil, nil
			if implied != nil {
				c.Hour, c.Minute, c.Second = intp(implied.hour), intp(implied.minute), intp(0)
			}
			return true, nil
		},
	}
}

func (r *resolution) timeApplier(tr timeRule) rules.Rule {
	return &rules.F{
		RegExp: tr.re,
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			s := span{m.Left, m.Right}
			if r.hasDate && s.overlaps(r.date) {
				return false, nil
			}
			if r.hasTime && s.size() <= r.tod.size() {
				return false, nil
			}
			tod, ok := tr.resolve(m.Captures)
			if !ok {
				return false, nil
			}
			r.tod, r.hasTime = s, true
			c.Hour, c.Minute, c.Second = intp(tod.hour), intp(tod.minute), intp(0)
			return true, nil
		},
	}
}

// Parse finds the first cluster of date and time expressions in text and
// combines them. A time with no date lands on the reference date, or the
// next day when that time has already passed.
func Parse(text string, ref time.Time) (Result, bool) {
	var r resolution
	w := when.New(options)
	for _, dr := range dateRules {
		w.Add(r.dateApplier(dr))
	}
	for _, tr := range timeRules {
		w.Add(r.timeApplier(tr))
	}

	lower := strings.ToLower(text)
	res, err := w.Parse(lower, ref)
	if err != nil || res == nil {
		return Result{}, false
	}

	t := res.Time.Truncate(time.Second)
	if !r.hasDate && t.Before(ref) {
		t = t.AddDate(0, 0, 1)
	}
	out := Result{
		Time:    t,
		HasDate: r.hasDate,
		HasTime: r.hasTime || r.implied,
		Text:    res.Text,
	}
	if len(lower) == len(text) {
		out.Text = text[res.Index : res.Index+len(res.Text)]
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, true
}

func intp(v int) *int { return &v }

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clockFrom(g []string) (clock, bool) {
	h, err := strconv.Atoi(g[0])
	if err != nil {
		return clock{}, false
	}
	m := 0
	if g[1] != "" {
		if m, err = strconv.Atoi(g[1]); err != nil || m > 59 {
			return clock{}, false
		}
	}
	switch strings.ReplaceAll(g[2], ".", "") {
	case "am":
		if h < 1 || h > 12 {
			return clock{}, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return clock{}, false
		}
		if h != 12 {
			h += 12
		}
	default:
		if h > 23 {
			return clock{}, false
		}
	}
	return clock{h, m}, true
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

func count(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// shift moves ref by n units. Minute and hour shifts keep the time of day.
func shift(ref time.Time, unit string, n int) (time.Time, *clock, bool) {
	day := midnight(ref)
	switch unit {
	case "minute", "min":
		t := ref.Add(time.Duration(n) * time.Minute)
		return midnight(t), &clock{t.Hour(), t.Minute()}, true
	case "hour", "hr":
		t := ref.Add(time.Duration(n) * time.Hour)
		return midnight(t), &clock{t.Hour(), t.Minute()}, true
	case "day":
		return day.AddDate(0, 0, n), nil, true
	case "week":
		return day.AddDate(0, 0, 7*n), nil, true
	case "month":
		return day.AddDate(0, n, 0), nil, true
	case "year":
		return day.AddDate(n, 0, 0), nil, true
	}
	return time.Time{}, nil, false
}

var weekdayPrefixes = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func weekday(s string) (time.Weekday, bool) {
	if len(s) < 3 {
		return 0, false
	}
	wd, ok := weekdayPrefixes[s[:3]]
	return wd, ok
}

// resolveWeekday picks the weekday relative to today. A bare or "this"
// weekday is the next one on or after today, "next" is the one in the
// following Monday-based week and "last" the most recent one before today.
func resolveWeekday(today time.Time, wd time.Weekday, qualifier string) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	switch qualifier {
	case "next":
		monday := today.AddDate(0, 0, -((int(today.Weekday())+6)%7)+7)
		return monday.AddDate(0, 0, (int(wd)+6)%7)
	case "last":
		back := (int(today.Weekday()) - int(wd) + 7) % 7
		if back == 0 {
			back = 7
		}
		return today.AddDate(0, 0, -back)
	}
	return today.AddDate(0, 0, ahead)
}

// MonthNumber maps an English month name or abbreviation to its number.
func MonthNumber(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if strings.HasPrefix(name, s) || (s == "sept" && m == time.September) {
			return m, true
		}
	}
	return 0, false
}

func monthDay(ref time.Time, month, day, year string) (time.Time, *clock, bool) {
	m, ok := MonthNumber(month)
	if !ok {
		return time.Time{}, nil, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, nil, false
	}
	if year == "" {
		return forwardDate(ref, int(m), d)
	}
	y, _ := strconv.Atoi(year)
	t, ok := validDate(y, int(m), d, ref.Location())
	return t, nil, ok
}

// forwardDate resolves a yearless month-day to this year's date, or next
// year's when this year's is already past.
func forwardDate(ref time.Time, m, d int) (time.Time, *clock, bool) {
	t, ok := validDate(ref.Year(), m, d, ref.Location())
	if !ok {
		// Feb 29 outside a leap year: take the next year that has it.
		for y := ref.Year() + 1; y <= ref.Year()+8; y++ {
			if t, ok = validDate(y, m, d, ref.Location()); ok {
				return t, nil, true
			}
		}
		return time.Time{}, nil, false
	}
	if t.Before(midnight(ref)) {
		next, ok := validDate(ref.Year()+1, m, d, ref.Location())
		return next, nil, ok
	}
	return t, nil, true
}

func validDate(y, m, d int, loc *time.Location) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
