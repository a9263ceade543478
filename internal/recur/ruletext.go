package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskrrule/internal/datetext"
)

// RuleTextParser turns English recurrence text such as "every 2 weeks on
// monday" into a Rule. ref supplies the location and the default year.
type RuleTextParser interface {
	ParseRuleText(text string, ref time.Time) (Rule, error)
}

// ruleTextParser is a small recursive-descent reader over lower-cased
// tokens. It stops at the first token it does not understand and returns
// the rule read so far.
type ruleTextParser struct{}

type tokens struct {
	list []string
	pos  int
}

func tokenize(text string) *tokens {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, ",", " , ")
	return &tokens{list: strings.Fields(text)}
}

func (t *tokens) peek() string {
	if t.pos >= len(t.list) {
		return ""
	}
	return t.list[t.pos]
}

func (t *tokens) next() string {
	s := t.peek()
	if s != "" {
		t.pos++
	}
	return s
}

// skipJoiners consumes "and" and "," between list items.
func (t *tokens) skipJoiners() {
	for t.peek() == "and" || t.peek() == "," {
		t.pos++
	}
}

var unitFreq = map[string]Frequency{
	"day": Daily, "days": Daily,
	"week": Weekly, "weeks": Weekly,
	"month": Monthly, "months": Monthly,
	"year": Yearly, "years": Yearly,
}

var adverbFreq = map[string]Frequency{
	"daily": Daily, "everyday": Daily,
	"weekly": Weekly,
	"monthly": Monthly,
	"yearly": Yearly, "annually": Yearly,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": -1,
}

func (ruleTextParser) ParseRuleText(text string, ref time.Time) (Rule, error) {
	t := tokenize(text)
	var r Rule

	switch w := t.next(); {
	case w == "every" || w == "each":
		if err := r.readEvery(t); err != nil {
			return Rule{}, err
		}
	case adverbFreq[w] != "":
		r.Freq = adverbFreq[w]
	default:
		return Rule{}, fmt.Errorf("%w: %q", ErrNoFrequency, text)
	}

	for {
		start := t.pos
		switch t.next() {
		case "on":
			if t.peek() == "the" {
				t.next()
				r.ByMonthDay = readOrdinals(t)
			} else if days := readWeekdays(t); len(days) > 0 {
				r.ByDay = days
				if r.Freq == Daily {
					r.Freq = Weekly
				}
			}
		case "in":
			r.ByMonth = readMonths(t)
		case "at":
			r.ByHour = readHours(t)
		case "until":
			if until, ok := readUntil(t, ref); ok {
				r.Until = until
			}
		case "for":
			if n, err := strconv.Atoi(t.next()); err == nil && n > 0 {
				if w := t.peek(); w == "times" || w == "time" {
					t.next()
				}
				r.Count = n
			}
		case "and", ",":
			continue
		default:
			return r, nil
		}
		if t.pos == start+1 {
			// Keyword with nothing usable after it.
			return r, nil
		}
	}
}

// readEvery reads what follows "every": an interval and unit, "other",
// weekday lists, weekday/weekend, or month names.
func (r *Rule) readEvery(t *tokens) error {
	w := t.peek()
	switch {
	case w == "other":
		t.next()
		r.Interval = 2
	case isNumber(w):
		n, _ := strconv.Atoi(w)
		t.next()
		if n > 1 {
			r.Interval = n
		}
	}

	w = t.peek()
	if f, ok := unitFreq[w]; ok {
		t.next()
		r.Freq = f
		return nil
	}
	switch w {
	case "weekday", "weekdays":
		t.next()
		r.Freq, r.ByDay = Weekly, append([]time.Weekday(nil), workweek...)
		return nil
	case "weekend", "weekends":
		t.next()
		r.Freq, r.ByDay = Weekly, []time.Weekday{time.Saturday, time.Sunday}
		return nil
	}
	if days := readWeekdays(t); len(days) > 0 {
		r.Freq, r.ByDay = Weekly, days
		return nil
	}
	if months := readMonths(t); len(months) > 0 {
		r.Freq, r.ByMonth = Yearly, months
		return nil
	}
	return fmt.Errorf("%w: every %q", ErrNoFrequency, w)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

var weekdayWords = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func weekdayWord(s string) (time.Weekday, bool) {
	s = strings.TrimSuffix(s, "s")
	if d, ok := weekdayWords[s]; ok {
		return d, true
	}
	for name, d := range weekdayWords {
		if len(s) >= 2 && strings.HasPrefix(name, s) && len(s) <= 3 {
			return d, true
		}
	}
	return 0, false
}

func readWeekdays(t *tokens) []time.Weekday {
	var out []time.Weekday
	for {
		d, ok := weekdayWord(t.peek())
		if !ok {
			return out
		}
		t.next()
		out = append(out, d)
		save := t.pos
		t.skipJoiners()
		if _, ok := weekdayWord(t.peek()); !ok {
			t.pos = save
			return out
		}
	}
}

func readMonths(t *tokens) []int {
	var out []int
	for {
		w := t.peek()
		if isNumber(w) {
			return out
		}
		m, ok := datetext.MonthNumber(w)
		if !ok {
			return out
		}
		t.next()
		out = append(out, int(m))
		save := t.pos
		t.skipJoiners()
		if _, ok := datetext.MonthNumber(t.peek()); !ok {
			t.pos = save
			return out
		}
	}
}

func ordinal(s string) (int, bool) {
	if n, ok := ordinalWords[s]; ok {
		return n, true
	}
	for _, suf := range []string{"st", "nd", "rd", "th"} {
		s = strings.TrimSuffix(s, suf)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 31 {
		return 0, false
	}
	return n, true
}

func readOrdinals(t *tokens) []int {
	var out []int
	for {
		n, ok := ordinal(t.peek())
		if !ok {
			return out
		}
		t.next()
		out = append(out, n)
		save := t.pos
		t.skipJoiners()
		if t.peek() == "the" {
			t.next()
		}
		if _, ok := ordinal(t.peek()); !ok {
			t.pos = save
			return out
		}
	}
}

// readHours reads integer hours only, like BYHOUR itself. "3pm" stops it.
func readHours(t *tokens) []int {
	var out []int
	for {
		h, err := strconv.Atoi(t.peek())
		if err != nil || h < 0 || h > 23 {
			return out
		}
		t.next()
		out = append(out, h)
		save := t.pos
		t.skipJoiners()
		if !isNumber(t.peek()) {
			t.pos = save
			return out
		}
	}
}

// readUntil reads "<Month> <D>[, <YYYY>]" and returns the end of that day
// in ref's location, in UTC. A missing year is ref's year.
func readUntil(t *tokens, ref time.Time) (time.Time, bool) {
	m, ok := datetext.MonthNumber(t.peek())
	if !ok {
		return time.Time{}, false
	}
	t.next()
	d, ok := ordinal(t.peek())
	if !ok || d < 1 {
		return time.Time{}, false
	}
	t.next()

	year := ref.Year()
	save := t.pos
	if t.peek() == "," {
		t.next()
	}
	if y, err := strconv.Atoi(t.peek()); err == nil && y >= 1000 {
		t.next()
		year = y
	} else {
		t.pos = save
	}

	end := time.Date(year, m, d, 23, 59, 59, 0, ref.Location())
	if end.Day() != d {
		return time.Time{}, false
	}
	return end.UTC(), true
}
