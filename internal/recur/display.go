package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const placeholder = "Repeat"

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func every(interval int, unit string) string {
	if interval <= 1 {
		return "Every " + unit
	}
	return fmt.Sprintf("Every %d %ss", interval, unit)
}

// DisplayText renders a short human phrase for a recurring encoding, such
// as "Every weekday" or "Every 2 months on the 3rd". One-time, empty and
// unsupported encodings render as "Repeat".
func DisplayText(s string) string {
	if IsSingleOccurrence(s) {
		return placeholder
	}
	opt, err := ruleOption(parseEncoding(s), time.UTC)
	if err != nil {
		return placeholder
	}
	interval := opt.Interval

	switch opt.Freq {
	case rrule.DAILY:
		return every(interval, "day")
	case rrule.WEEKLY:
		days := opt.Byweekday
		if len(days) == 5 && isWorkweek(days) {
			return "Every weekday"
		}
		if len(days) == 1 {
			return every(interval, "week") + " on " + pyWeekday(days[0].Day()).String()
		}
		return every(interval, "week")
	case rrule.MONTHLY:
		if len(opt.Bymonthday) == 1 {
			d := opt.Bymonthday[0]
			return fmt.Sprintf("%s on the %d%s", every(interval, "month"), d, ordinalSuffix(d))
		}
		return every(interval, "month")
	case rrule.YEARLY:
		if len(opt.Bymonth) == 1 && len(opt.Bymonthday) == 1 {
			m, d := opt.Bymonth[0], opt.Bymonthday[0]
			if m >= 1 && m <= 12 {
				return fmt.Sprintf("%s on %s %d%s", every(interval, "year"), time.Month(m), d, ordinalSuffix(d))
			}
		}
		return every(interval, "year")
	}
	return placeholder
}

func isWorkweek(days []rrule.Weekday) bool {
	seen := map[time.Weekday]bool{}
	for i := range days {
		seen[pyWeekday(days[i].Day())] = true
	}
	for _, d := range workweek {
		if !seen[d] {
			return false
		}
	}
	return true
}

const (
	dayLabel  = "Mon Jan 2"
	timeLabel = ", 3:04 PM"
)

// FormatTaskDateLabel renders a single date, e.g. "Tue Sep 9" or
// "Tue Sep 9, 3:30 PM".
func FormatTaskDateLabel(t time.Time, withTime bool) string {
	if withTime {
		return t.Format(dayLabel + timeLabel)
	}
	return t.Format(dayLabel)
}

// FormatTaskRangeLabel renders "start → end". The end side repeats the
// month only when it differs from the start and the year only when the year
// differs. A nil end renders as "Forever".
func FormatTaskRangeLabel(start time.Time, end *time.Time, withTime bool) string {
	label := FormatTaskDateLabel(start, withTime)
	if end == nil {
		return label + " → Forever"
	}

	layout := "Mon"
	sameYear := end.Year() == start.Year()
	if !sameYear || end.Month() != start.Month() {
		layout += " Jan"
	}
	layout += " 2"
	if !sameYear {
		layout += " 2006"
	}
	return label + " → " + end.Format(layout)
}

// ScheduleLabel is the list-item label of an encoding: the date of a
// one-time schedule, or the start → end range of a recurring one.
func (e *Engine) ScheduleLabel(s string, loc *time.Location) (string, bool) {
	start, ok := e.FirstOccurrenceDate(s, loc)
	if !ok {
		return "", false
	}
	withTime := HasExplicitTime(s)
	if IsSingleOccurrence(s) {
		return FormatTaskDateLabel(start, withTime), true
	}
	if end, ok := EndDate(s, loc); ok {
		return FormatTaskRangeLabel(start, &end, withTime), true
	}
	return FormatTaskRangeLabel(start, nil, withTime), true
}
