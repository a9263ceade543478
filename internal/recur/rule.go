package recur

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the RRULE FREQ value.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

func (f Frequency) valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

var (
	ErrEmptyEncoding = errors.New("recur: empty encoding")
	ErrNoFrequency   = errors.New("recur: no frequency")
	ErrUnparseable   = errors.New("recur: unparseable text")
	ErrNoDate        = errors.New("recur: no date")
)

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the two-letter RRULE code of d.
func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[d]
}

// Rule is the structured form of an RRULE clause used when building
// encodings. Zero values are omitted from String.
type Rule struct {
	Freq       Frequency
	Interval   int
	ByDay      []time.Weekday
	ByMonth    []int
	ByMonthDay []int
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	Count      int
	Until      time.Time
}

// String renders the rule fields (without the RRULE: prefix) in a fixed
// order. BYDAY keeps the order it was given in.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			codes[i] = WeekdayCode(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	for _, f := range []struct {
		key  string
		vals []int
	}{
		{"BYMONTH", r.ByMonth},
		{"BYMONTHDAY", r.ByMonthDay},
		{"BYHOUR", r.ByHour},
		{"BYMINUTE", r.ByMinute},
		{"BYSECOND", r.BySecond},
	} {
		if len(f.vals) > 0 {
			parts = append(parts, f.key+"="+joinInts(f.vals))
		}
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		parts = append(parts, "UNTIL="+FormatUTC(r.Until))
	}
	return strings.Join(parts, ";")
}

func joinInts(vals []int) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

// ruleOption parses the RRULE fields of e with rrule-go. Floating UNTIL
// values are read in loc. Dtstart is left for the caller to set.
func ruleOption(e encoding, loc *time.Location) (*rrule.ROption, error) {
	if !e.hasRule || len(e.fields) == 0 {
		return nil, ErrEmptyEncoding
	}
	opt, err := rrule.StrToROptionInLocation("RRULE:"+e.ruleText(), loc)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", e.ruleText(), err)
	}
	return opt, nil
}

// Validate reports whether the encoding parses and builds an rrule-go rule.
func Validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyEncoding
	}
	e := parseEncoding(s)
	opt, err := ruleOption(e, time.UTC)
	if err != nil {
		return err
	}
	if e.hasDTStart {
		st, err := ParseStamp(e.dtstart)
		if err != nil {
			return fmt.Errorf("dtstart: %w", err)
		}
		opt.Dtstart = st.Instant(time.UTC)
	}
	if _, err := rrule.NewRRule(*opt); err != nil {
		return fmt.Errorf("build rrule: %w", err)
	}
	return nil
}

// pyWeekday maps rrule-go's Monday-based weekday index to time.Weekday.
func pyWeekday(d int) time.Weekday {
	return time.Weekday((d + 1) % 7)
}
