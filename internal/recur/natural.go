package recur

import (
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"taskrrule/internal/datetext"
	appLog "taskrrule/internal/log"
)

var (
	untilClause = regexp.MustCompile(`(?i)until\s+(.+)$`)
	dailyAt     = regexp.MustCompile(`(?i)(?:every\s+day|daily|everyday)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(AM|PM)?`)
	dailyAtHHMM = regexp.MustCompile(`(?i)(?:every\s+day|daily|everyday)\s+at\s+(\d{1,2}):(\d{2})\s*(AM|PM)?`)
	// explicitTime tells a typed clock time from a date-only phrase.
	explicitTime = regexp.MustCompile(`(?i)\bat\s+\d|:\d|\d\s*(?:am|pm)\b|\b(?:noon|midnight)\b`)
)

var errNoMatch = errors.New("no match")

// phrase is the input of every parsing stage.
type phrase struct {
	raw string
	// corrected has its until-clause rewritten to carry an explicit year.
	corrected string
	until     mo.Option[time.Time]
	now       time.Time
	loc       *time.Location
}

// rulePatch holds the fields rebuilt by hand on top of a parsed Rule.
type rulePatch struct {
	hour   mo.Option[int]
	minute mo.Option[int]
	until  mo.Option[time.Time]
}

func (p rulePatch) apply(r Rule) Rule {
	if h, ok := p.hour.Get(); ok {
		r.ByHour = []int{h}
		r.ByMinute = nil
		if m, ok := p.minute.Get(); ok {
			r.ByMinute = []int{m}
		}
	}
	if u, ok := p.until.Get(); ok {
		r.Until = u.UTC()
	}
	return r
}

// ParseNaturalLanguage converts free text into an encoding. Recurring text
// ("every weekday at 9", "every day until December 1") yields an RRULE line;
// a date phrase ("next Friday at 3pm") yields a one-time encoding. Text that
// no stage understands returns false.
func (e *Engine) ParseNaturalLanguage(text string, loc *time.Location) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	in := e.correctUntil(text, loc)

	stages := []struct {
		name string
		run  func(phrase) mo.Result[string]
	}{
		{"rule text", e.ruleTextStage},
		{"daily time", dailyTimeStage},
		{"single date", singleDateStage},
	}
	for _, s := range stages {
		out, err := s.run(in).Get()
		if err == nil {
			return out, true
		}
		appLog.Debug("natural language: stage failed", "stage", s.name, "text", text, "err", err)
	}
	return "", false
}

// correctUntil rewrites "until <phrase>" as "until January 2, 2006" so the
// rule-text stage never has to guess a year. A date with no clock time ends
// at the last second of that local day.
func (e *Engine) correctUntil(text string, loc *time.Location) phrase {
	in := phrase{raw: text, corrected: text, now: e.Now(loc), loc: loc}
	m := untilClause.FindStringSubmatchIndex(text)
	if m == nil {
		return in
	}
	res, ok := datetext.Parse(strings.TrimSpace(text[m[2]:m[3]]), in.now)
	if !ok || !res.HasDate {
		return in
	}
	until := res.Time
	if !res.HasTime {
		// A bare date keeps that whole day in the rule.
		y, mon, d := until.Date()
		until = time.Date(y, mon, d, 23, 59, 59, 0, loc)
	}
	in.until = mo.Some(until)
	in.corrected = text[:m[0]] + "until " + res.Time.Format("January 2, 2006")
	return in
}

func (e *Engine) ruleTextStage(in phrase) mo.Result[string] {
	r, err := e.rules.ParseRuleText(in.corrected, in.now)
	if err != nil {
		return mo.Err[string](err)
	}

	var patch rulePatch
	if m := dailyAt.FindStringSubmatch(in.corrected); m != nil {
		hour, _ := strconv.Atoi(m[1])
		ampm := strings.ToUpper(m[3])
		want := to24h(hour, ampm)
		mis := (m[2] != "" && len(r.ByMinute) == 0) ||
			(ampm == "PM" && hour != 12 && !slices.Contains(r.ByHour, want)) ||
			(ampm == "AM" && hour == 12 && !slices.Contains(r.ByHour, 0))
		if mis && want <= 23 {
			patch.hour = mo.Some(want)
			if m[2] != "" {
				minute, _ := strconv.Atoi(m[2])
				patch.minute = mo.Some(minute)
			}
		}
	}
	if r.Until.IsZero() {
		patch.until = in.until
	}
	return mo.Ok("RRULE:" + patch.apply(r).String())
}

// dailyTimeStage handles "every day at H:MM [AM|PM]" when the rule-text
// stage gave up.
func dailyTimeStage(in phrase) mo.Result[string] {
	m := dailyAtHHMM.FindStringSubmatch(in.corrected)
	if m == nil {
		return mo.Err[string](errNoMatch)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	r := Rule{
		Freq:     Daily,
		ByHour:   []int{to24h(hour, strings.ToUpper(m[3]))},
		ByMinute: []int{minute},
	}
	if u, ok := in.until.Get(); ok {
		r.Until = u.UTC()
	}
	return mo.Ok("RRULE:" + r.String())
}

// singleDateStage reads the raw text as one date. Without a typed clock
// time the DTSTART is a date stamp for the local calendar date.
func singleDateStage(in phrase) mo.Result[string] {
	res, ok := datetext.Parse(in.raw, in.now)
	if !ok {
		return mo.Err[string](errNoMatch)
	}
	if !explicitTime.MatchString(in.raw) {
		return mo.Ok(GenerateSingleOccurrence(res.Time, in.loc))
	}

	u := res.Time.UTC()
	enc := encoding{dtstart: FormatUTC(u), hasDTStart: true}
	enc.set("FREQ", "DAILY")
	enc.set("COUNT", "1")
	enc.set("BYHOUR", strconv.Itoa(u.Hour()))
	enc.set("BYMINUTE", strconv.Itoa(u.Minute()))
	if u.Second() != 0 {
		enc.set("BYSECOND", strconv.Itoa(u.Second()))
	}
	return mo.Ok(enc.String())
}

func to24h(hour int, ampm string) int {
	switch {
	case ampm == "PM" && hour != 12:
		return hour + 12
	case ampm == "AM" && hour == 12:
		return 0
	}
	return hour
}
