package recur

import (
	"strconv"
	"strings"
)

type field struct {
	key   string
	value string
}

// encoding is the lexical view of a DTSTART/RRULE pair. Fields keep their
// original order and text so that edits touch only what they name.
type encoding struct {
	dtstart    string
	hasDTStart bool
	hasRule    bool
	fields     []field
}

func parseEncoding(s string) encoding {
	var e encoding
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Legacy single-line form: DTSTART:...;RRULE:...
		if i := strings.Index(line, ";RRULE:"); i > 0 && strings.HasPrefix(line, "DTSTART:") {
			lines = append(lines, line[:i], line[i+1:])
			continue
		}
		lines = append(lines, line)
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "DTSTART:"):
			e.dtstart = strings.TrimPrefix(line, "DTSTART:")
			e.hasDTStart = true
		case strings.HasPrefix(line, "RRULE:"):
			e.hasRule = true
			e.fields = append(e.fields, splitFields(strings.TrimPrefix(line, "RRULE:"))...)
		case strings.Contains(line, "="):
			// Bare rule text without the RRULE: prefix.
			e.hasRule = true
			e.fields = append(e.fields, splitFields(line)...)
		}
	}
	return e
}

func splitFields(rule string) []field {
	var out []field
	for _, part := range strings.Split(rule, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out = append(out, field{key: strings.ToUpper(strings.TrimSpace(k)), value: strings.TrimSpace(v)})
	}
	return out
}

func (e encoding) String() string {
	var lines []string
	if e.hasDTStart {
		lines = append(lines, "DTSTART:"+e.dtstart)
	}
	if e.hasRule {
		lines = append(lines, "RRULE:"+e.ruleText())
	}
	return strings.Join(lines, "\n")
}

func (e encoding) ruleText() string {
	parts := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		parts = append(parts, f.key+"="+f.value)
	}
	return strings.Join(parts, ";")
}

func (e encoding) get(key string) (string, bool) {
	for _, f := range e.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return "", false
}

func (e encoding) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := e.get(k); ok {
			return true
		}
	}
	return false
}

// firstInt returns the first value of a comma separated integer field.
func (e encoding) firstInt(key string) (int, bool) {
	v, ok := e.get(key)
	if !ok {
		return 0, false
	}
	first, _, _ := strings.Cut(v, ",")
	n, err := strconv.Atoi(first)
	if err != nil {
		return 0, false
	}
	return n, true
}

// set replaces the value of key in place, or appends it.
func (e *encoding) set(key, value string) {
	for i := range e.fields {
		if e.fields[i].key == key {
			e.fields[i].value = value
			return
		}
	}
	e.fields = append(e.fields, field{key: key, value: value})
	e.hasRule = true
}

func (e *encoding) del(keys ...string) {
	out := e.fields[:0]
	for _, f := range e.fields {
		drop := false
		for _, k := range keys {
			if f.key == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	e.fields = out
}

func (e encoding) stamp() (Stamp, bool) {
	if !e.hasDTStart {
		return Stamp{}, false
	}
	st, err := ParseStamp(e.dtstart)
	if err != nil {
		return Stamp{}, false
	}
	return st, true
}

// timeMarkers reports whether the rule pins the time of day explicitly.
func (e encoding) timeMarkers() bool {
	return e.has("BYHOUR", "BYMINUTE", "BYSECOND")
}

// isDateStamp reports whether the DTSTART only carries a calendar date:
// a UTC midnight stamp with no BY time fields.
func (e encoding) isDateStamp(st Stamp) bool {
	return st.DateOnly || (st.UTC && st.IsMidnight() && !e.timeMarkers())
}

var timeFields = []string{"BYHOUR", "BYMINUTE", "BYSECOND"}

// IsSingleOccurrence reports whether encoding describes a one-time schedule,
// i.e. its COUNT field is exactly 1. An empty encoding counts as single.
func IsSingleOccurrence(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	v, ok := parseEncoding(s).get("COUNT")
	return ok && v == "1"
}

// IsRecurring is the negation of IsSingleOccurrence.
func IsRecurring(s string) bool {
	return !IsSingleOccurrence(s)
}

// HasExplicitTime reports whether the encoding pins a time of day, either
// through a non-midnight DTSTART or BY time fields.
func HasExplicitTime(s string) bool {
	e := parseEncoding(s)
	if e.timeMarkers() {
		return true
	}
	st, ok := e.stamp()
	return ok && !st.DateOnly && !st.IsMidnight()
}

// ConvertToSingleOccurrence drops every recurrence field and forces
// FREQ=DAILY;COUNT=1. DTSTART and BY time fields survive unchanged, so the
// time of day is kept. An encoding with no DTSTART and no time fields
// converts to the empty string.
func ConvertToSingleOccurrence(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	e := parseEncoding(s)

	out := encoding{dtstart: e.dtstart, hasDTStart: e.hasDTStart, hasRule: true}
	out.fields = []field{{"FREQ", "DAILY"}, {"COUNT", "1"}}
	for _, f := range e.fields {
		for _, k := range timeFields {
			if f.key == k {
				out.fields = append(out.fields, f)
			}
		}
	}

	if !out.hasDTStart && len(out.fields) == 2 {
		return ""
	}
	return out.String()
}

// Split returns the raw DTSTART value and the RRULE fields of an encoding.
func Split(s string) (dtstart, rule string) {
	e := parseEncoding(s)
	return e.dtstart, e.ruleText()
}

// Join is the inverse of Split. Empty parts are left out.
func Join(dtstart, rule string) string {
	e := encoding{dtstart: dtstart, hasDTStart: dtstart != ""}
	if rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"); rule != "" {
		e.hasRule = true
		e.fields = splitFields(rule)
	}
	return e.String()
}

// Frame tells how the DTSTART of an encoding is read.
type Frame int

const (
	// FrameNone: no DTSTART, the schedule starts from now.
	FrameNone Frame = iota
	// FrameDate: a calendar date with no time of day.
	FrameDate
	// FrameUTC: a UTC instant whose BY time fields are UTC too.
	FrameUTC
	// FrameZoned: a UTC instant repeated on the caller's local calendar.
	FrameZoned
	// FrameLocal: wall clock time in the caller's zone.
	FrameLocal
)

// StartFrame parses the DTSTART of s and classifies it.
func StartFrame(s string) (Stamp, Frame) {
	e := parseEncoding(s)
	st, ok := e.stamp()
	switch {
	case !ok:
		return Stamp{}, FrameNone
	case e.isDateStamp(st):
		return st, FrameDate
	case st.UTC && e.timeMarkers():
		return st, FrameUTC
	case st.UTC:
		return st, FrameZoned
	}
	return st, FrameLocal
}
