package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuickFrequency is one of the quick-pick repeat choices.
type QuickFrequency string

const (
	QuickDaily    QuickFrequency = "daily"
	QuickWeekly   QuickFrequency = "weekly"
	QuickWeekdays QuickFrequency = "weekdays"
	QuickMonthly  QuickFrequency = "monthly"
	QuickYearly   QuickFrequency = "yearly"
)

// ParseQuickFrequency accepts the quick-pick names case-insensitively.
func ParseQuickFrequency(s string) (QuickFrequency, error) {
	q := QuickFrequency(strings.ToLower(strings.TrimSpace(s)))
	switch q {
	case QuickDaily, QuickWeekly, QuickWeekdays, QuickMonthly, QuickYearly:
		return q, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoFrequency, s)
}

// BasedOn selects the anchor of a recurrence.
type BasedOn string

const (
	// Scheduled anchors on the chosen date.
	Scheduled BasedOn = "SCHEDULED"
	// Completed restarts from now, i.e. the completion date.
	Completed BasedOn = "COMPLETED"
)

// EndType is the end condition of a custom recurrence.
type EndType string

const (
	EndNever  EndType = "NEVER"
	EndOnDate EndType = "ON_DATE"
)

// Config is the input of GenerateCustomRecurrence.
type Config struct {
	Frequency Frequency `json:"frequency" yaml:"frequency"`
	Interval  int       `json:"interval" yaml:"interval"`
	EndType   EndType   `json:"end_type" yaml:"end_type"`
	EndDate   time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	BasedOn   BasedOn   `json:"based_on" yaml:"based_on"`
	// SelectedDays is the weekly day set, in the order the user picked it.
	SelectedDays []time.Weekday `json:"selected_days,omitempty" yaml:"selected_days,omitempty"`
}

var workweek = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

const singleRule = "FREQ=DAILY;COUNT=1"

// GenerateSingleOccurrence builds a one-time encoding for the calendar date
// of date in loc.
func GenerateSingleOccurrence(date time.Time, loc *time.Location) string {
	return "DTSTART:" + dateStamp(date, loc) + "\nRRULE:" + singleRule
}

func (e *Engine) anchor(date time.Time, loc *time.Location, basedOn BasedOn) time.Time {
	if basedOn == Completed {
		return e.Now(loc)
	}
	return date.In(loc)
}

func quickRule(anchor time.Time, freq QuickFrequency) (Rule, error) {
	switch freq {
	case QuickDaily:
		return Rule{Freq: Daily}, nil
	case QuickWeekly:
		return Rule{Freq: Weekly, ByDay: []time.Weekday{anchor.Weekday()}}, nil
	case QuickWeekdays:
		return Rule{Freq: Weekly, ByDay: workweek}, nil
	case QuickMonthly:
		return Rule{Freq: Monthly, ByMonthDay: []int{anchor.Day()}}, nil
	case QuickYearly:
		return Rule{Freq: Yearly, ByMonth: []int{int(anchor.Month())}, ByMonthDay: []int{anchor.Day()}}, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrNoFrequency, freq)
}

// GenerateQuickRecurrence builds a quick-pick recurrence anchored at date
// (or at now for Completed). DTSTART is a date stamp.
func (e *Engine) GenerateQuickRecurrence(date time.Time, freq QuickFrequency, loc *time.Location, basedOn BasedOn) (string, error) {
	if date.IsZero() {
		return "", ErrNoDate
	}
	a := e.anchor(date, loc, basedOn)
	r, err := quickRule(a, freq)
	if err != nil {
		return "", err
	}
	return "DTSTART:" + dateStamp(a, loc) + "\nRRULE:" + r.String(), nil
}

// startFor returns the DTSTART value for a new recurrence on the date of a,
// carrying the time of day of existing when it has one.
func (e *Engine) startFor(a time.Time, existing string, loc *time.Location) string {
	if existing != "" {
		if tod, ok := e.ParseTimeOfDay(existing, loc); ok {
			return FormatUTC(onDate(a, tod, loc))
		}
	}
	return dateStamp(a, loc)
}

// GenerateRecurrenceWithPreservedTime is GenerateQuickRecurrence that keeps
// the time of day of an existing encoding.
func (e *Engine) GenerateRecurrenceWithPreservedTime(existing string, freq QuickFrequency, date time.Time, loc *time.Location, basedOn BasedOn) (string, error) {
	if date.IsZero() {
		return "", ErrNoDate
	}
	a := e.anchor(date, loc, basedOn)
	r, err := quickRule(a, freq)
	if err != nil {
		return "", err
	}
	return "DTSTART:" + e.startFor(a, existing, loc) + "\nRRULE:" + r.String(), nil
}

// GenerateCustomRecurrence builds an encoding from a full Config.
func (e *Engine) GenerateCustomRecurrence(date time.Time, cfg Config, loc *time.Location, existing string) (string, error) {
	if date.IsZero() {
		return "", ErrNoDate
	}
	if !cfg.Frequency.valid() {
		return "", fmt.Errorf("%w: %q", ErrNoFrequency, cfg.Frequency)
	}
	a := e.anchor(date, loc, cfg.BasedOn)

	r := Rule{Freq: cfg.Frequency, Interval: cfg.Interval}
	switch cfg.Frequency {
	case Weekly:
		if len(cfg.SelectedDays) > 0 {
			r.ByDay = cfg.SelectedDays
		} else {
			r.ByDay = []time.Weekday{a.Weekday()}
		}
	case Monthly:
		r.ByMonthDay = []int{a.Day()}
	case Yearly:
		r.ByMonth = []int{int(a.Month())}
		r.ByMonthDay = []int{a.Day()}
	}

	start := e.startFor(a, existing, loc)
	rule := r.String()
	if cfg.EndType == EndOnDate && !cfg.EndDate.IsZero() {
		// A date stamp expands on calendar digits, so UNTIL does too.
		// A timed start needs the real end of the local day.
		if st, err := ParseStamp(start); err == nil && st.IsMidnight() {
			rule += ";UNTIL=" + untilStamp(cfg.EndDate, loc)
		} else {
			y, m, d := cfg.EndDate.In(loc).Date()
			rule += ";UNTIL=" + FormatUTC(time.Date(y, m, d, 23, 59, 59, 0, loc))
		}
	}
	return "DTSTART:" + start + "\nRRULE:" + rule, nil
}

// GenerateTimeOnlyRecurrence builds a placeholder one-time encoding on
// today's date carrying only the time of day. Its DTSTART is local wall
// clock with no UTC marker.
func (e *Engine) GenerateTimeOnlyRecurrence(t time.Time, loc *time.Location) string {
	at := onDate(e.Now(loc), t, loc)
	return "DTSTART:" + at.Format(localLayout) + "\nRRULE:" + singleRule
}

// ReplaceTimeOfDay rewrites only the time of day. With a DTSTART the date
// shown to the user (the first occurrence) is kept and the stamp keeps its
// UTC or local form; BY time fields that exist follow along. Without a
// DTSTART, BYHOUR/BYMINUTE are rewritten in loc. A nil t clears the time.
func (e *Engine) ReplaceTimeOfDay(s string, t *time.Time, loc *time.Location) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	enc := parseEncoding(s)

	if !enc.hasDTStart {
		enc.del(timeFields...)
		if t != nil {
			w := t.In(loc)
			enc.set("BYHOUR", strconv.Itoa(w.Hour()))
			if w.Minute() != 0 {
				enc.set("BYMINUTE", strconv.Itoa(w.Minute()))
			}
		}
		return enc.String()
	}

	st, ok := enc.stamp()
	if !ok {
		return s
	}
	day, ok := e.FirstOccurrenceDate(s, loc)
	if !ok {
		day = time.Date(st.Year, st.Month, st.Day, 0, 0, 0, 0, loc)
	}

	if t == nil {
		enc.dtstart = dateStamp(day, loc)
		enc.del(timeFields...)
		return enc.String()
	}

	at := onDate(day, *t, loc)
	ref := at
	if st.UTC {
		enc.dtstart = FormatUTC(at)
		ref = at.UTC()
	} else {
		enc.dtstart = at.Format(localLayout)
	}
	for key, v := range map[string]int{"BYHOUR": ref.Hour(), "BYMINUTE": ref.Minute(), "BYSECOND": ref.Second()} {
		if enc.has(key) {
			enc.set(key, strconv.Itoa(v))
		}
	}
	return enc.String()
}

// UpdateWithDate moves a schedule to newDate keeping its time of day and
// repeat pattern. A one-time schedule stays one-time.
func (e *Engine) UpdateWithDate(existing string, newDate time.Time, loc *time.Location) string {
	if strings.TrimSpace(existing) == "" {
		return GenerateSingleOccurrence(newDate, loc)
	}
	if IsSingleOccurrence(existing) {
		if tod, ok := e.ParseTimeOfDay(existing, loc); ok {
			return "DTSTART:" + FormatUTC(onDate(newDate, tod, loc)) + "\nRRULE:" + singleRule
		}
		return GenerateSingleOccurrence(newDate, loc)
	}

	enc := parseEncoding(existing)
	opt, err := ruleOption(enc, loc)
	if err != nil {
		return GenerateSingleOccurrence(newDate, loc)
	}

	freq := QuickDaily
	switch Frequency(opt.Freq.String()) {
	case Weekly:
		freq = QuickWeekly
		if v, _ := enc.get("BYDAY"); v == "MO,TU,WE,TH,FR" {
			freq = QuickWeekdays
		}
	case Monthly:
		freq = QuickMonthly
	case Yearly:
		freq = QuickYearly
	}

	a := newDate.In(loc)
	r, _ := quickRule(a, freq)
	r.Interval = opt.Interval
	if opt.Count > 1 {
		r.Count = opt.Count
	}
	r.Until = opt.Until
	return "DTSTART:" + e.startFor(a, existing, loc) + "\nRRULE:" + r.String()
}

// Today, Tomorrow and NextWeekend are one-time shortcuts relative to now.
func (e *Engine) Today(loc *time.Location) string {
	return GenerateSingleOccurrence(e.Now(loc), loc)
}

func (e *Engine) Tomorrow(loc *time.Location) string {
	return GenerateSingleOccurrence(e.Now(loc).AddDate(0, 0, 1), loc)
}

// NextWeekend is the coming Saturday, or the one after when today is
// Saturday.
func (e *Engine) NextWeekend(loc *time.Location) string {
	today := e.Now(loc)
	days := int(time.Saturday - today.Weekday())
	if days == 0 {
		days = 7
	}
	return GenerateSingleOccurrence(today.AddDate(0, 0, days), loc)
}
