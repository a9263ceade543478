package recur

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "taskrrule/internal/log"
)

const lookahead = 365 * 24 * time.Hour

// expansion is an rrule-go rule built from an encoding together with the
// frame its occurrences live in.
type expansion struct {
	rule *rrule.RRule
	// floating rules expand on calendar digits held in UTC; each occurrence
	// stands for local midnight of that date in loc.
	floating bool
	loc      *time.Location
	start    time.Time
}

// present converts an occurrence into the caller's timezone.
func (x expansion) present(t time.Time) time.Time {
	if x.floating {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, x.loc)
	}
	return t.In(x.loc)
}

// frame converts an instant into the rule's frame for window queries.
func (x expansion) frame(t time.Time) time.Time {
	if x.floating {
		y, m, d := t.In(x.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// expand builds the rule for an encoding. BY time fields live in the same
// frame as DTSTART: UTC for a UTC stamp, loc otherwise. A UTC stamp with no
// time fields is moved into loc first so BYDAY and BYMONTHDAY match the
// local calendar.
func (e *Engine) expand(s string, loc *time.Location) (expansion, error) {
	enc := parseEncoding(s)
	if !enc.hasRule && !enc.hasDTStart {
		return expansion{}, ErrEmptyEncoding
	}

	x := expansion{loc: loc}
	markers := enc.timeMarkers()

	var dtstart time.Time
	st, hasStart := enc.stamp()
	switch {
	case enc.hasDTStart && !hasStart:
		return expansion{}, errBadStamp
	case !hasStart:
		now := e.Now(loc).Truncate(time.Second)
		if markers {
			dtstart = now
		} else {
			dtstart = midnight(now)
		}
		x.start = dtstart
	case enc.isDateStamp(st):
		x.floating = true
		dtstart = time.Date(st.Year, st.Month, st.Day, 0, 0, 0, 0, time.UTC)
	case st.UTC && markers:
		dtstart = st.Instant(time.UTC)
	case st.UTC:
		dtstart = st.Instant(time.UTC).In(loc)
	default:
		dtstart = st.Instant(loc)
	}
	if hasStart {
		x.start = dtstart
	}

	// A DTSTART without any rule line is a one-off.
	opt := &rrule.ROption{Freq: rrule.DAILY, Count: 1}
	if enc.hasRule {
		frameLoc := loc
		if x.floating {
			frameLoc = time.UTC
		}
		var err error
		if opt, err = ruleOption(enc, frameLoc); err != nil {
			return expansion{}, err
		}
	}
	opt.Dtstart = dtstart

	// Unpinned minutes and seconds default to zero rather than to whatever
	// DTSTART (possibly "now") happens to carry.
	if markers {
		if len(opt.Byhour) > 0 && len(opt.Byminute) == 0 {
			opt.Byminute = []int{0}
		}
		if len(opt.Bysecond) == 0 {
			opt.Bysecond = []int{0}
		}
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return expansion{}, err
	}
	x.rule = r
	return x, nil
}

// FirstOccurrenceDate returns the first occurrence of the encoding in loc,
// searching one year ahead of DTSTART (or of now when there is no DTSTART).
// Encodings without a time of day yield local midnight.
func (e *Engine) FirstOccurrenceDate(s string, loc *time.Location) (time.Time, bool) {
	x, err := e.expand(s, loc)
	if err != nil {
		appLog.Debug("first occurrence: expand failed", "encoding", s, "err", err)
		return time.Time{}, false
	}
	first := x.rule.After(x.start, true)
	if first.IsZero() || first.After(x.start.Add(lookahead)) {
		return time.Time{}, false
	}
	return x.present(first), true
}

// Occurrences lists up to limit occurrences in [from, to], in loc.
// A non-positive limit means no limit.
func (e *Engine) Occurrences(s string, loc *time.Location, from, to time.Time, limit int) []time.Time {
	out, _ := e.Expand(s, loc, from, to, limit, nil)
	return out
}

// Expand is Occurrences with excluded starts. The second result reports
// whether limit cut the list short.
func (e *Engine) Expand(s string, loc *time.Location, from, to time.Time, limit int, except []time.Time) ([]time.Time, bool) {
	x, err := e.expand(s, loc)
	if err != nil {
		appLog.Debug("occurrences: expand failed", "encoding", s, "err", err)
		return nil, false
	}

	set := &rrule.Set{}
	set.RRule(x.rule)
	for _, ex := range except {
		set.ExDate(x.frame(ex))
	}

	var out []time.Time
	next := set.Iterator()
	lo, hi := x.frame(from), x.frame(to)
	for {
		t, ok := next()
		if !ok || t.After(hi) {
			return out, false
		}
		if t.Before(lo) {
			continue
		}
		if limit > 0 && len(out) == limit {
			return out, true
		}
		out = append(out, x.present(t))
	}
}

// NextDueDate is the first occurrence at or after now, within one year.
// Date-only schedules stay due for the whole of their day.
func (e *Engine) NextDueDate(s string, loc *time.Location) (time.Time, bool) {
	now := e.Now(loc)
	occ := e.Occurrences(s, loc, now, now.Add(lookahead), 1)
	if len(occ) == 0 {
		return time.Time{}, false
	}
	return occ[0], true
}

// EndDate returns the UNTIL bound in loc. COUNT-bounded and unbounded rules
// report no end date; they display as repeating forever. A UTC UNTIL is an
// instant shown in loc; only an 8-digit UNTIL is read as a local date.
func EndDate(s string, loc *time.Location) (time.Time, bool) {
	enc := parseEncoding(s)
	v, ok := enc.get("UNTIL")
	if !ok {
		return time.Time{}, false
	}
	until, err := ParseStamp(v)
	if err != nil {
		return time.Time{}, false
	}
	if until.DateOnly {
		return time.Date(until.Year, until.Month, until.Day, 0, 0, 0, 0, loc), true
	}
	return until.Instant(loc).In(loc), true
}

// ParseTimeOfDay extracts the time of day from DTSTART, or from
// BYHOUR/BYMINUTE on today's date when there is no DTSTART. Midnight with
// no BYHOUR/BYMINUTE marker counts as no time; with them, the BY fields give
// the time on the DTSTART date, in the stamp's frame.
func (e *Engine) ParseTimeOfDay(s string, loc *time.Location) (time.Time, bool) {
	enc := parseEncoding(s)
	if enc.hasDTStart {
		st, ok := enc.stamp()
		if !ok || st.DateOnly {
			return time.Time{}, false
		}
		if !st.IsMidnight() {
			return st.Instant(loc).In(loc), true
		}
		h, hok := enc.firstInt("BYHOUR")
		m, mok := enc.firstInt("BYMINUTE")
		if !hok && !mok {
			return time.Time{}, false
		}
		frame := loc
		if st.UTC {
			frame = time.UTC
		}
		return time.Date(st.Year, st.Month, st.Day, h, m, 0, 0, frame).In(loc), true
	}

	h, ok := enc.firstInt("BYHOUR")
	if !ok {
		return time.Time{}, false
	}
	m, _ := enc.firstInt("BYMINUTE")
	today := e.Now(loc)
	y, mo, d := today.Date()
	return time.Date(y, mo, d, h, m, 0, 0, loc), true
}
