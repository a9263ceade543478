package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "taskrrule/internal/log"
	"taskrrule/internal/model"
	"taskrrule/internal/recur"
)

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
	dateLayout  = "20060102"
)

// ParseICS reads the VEVENT and VTODO components of a feed into tasks.
//
//   - DTSTART (DUE for a todo without one) becomes the encoding's DTSTART:
//     a VALUE=DATE becomes a date stamp, a TZID or Z time a UTC instant and
//     a floating time stays local wall clock.
//   - The RRULE is copied. A component without one becomes a one-time task.
//   - EXDATE values are kept for agenda expansion. Floating and date
//     values are read as wall clock in loc.
//
// A component that cannot be read is logged and skipped.
func ParseICS(feed Feed, body []byte, loc *time.Location) ([]model.Task, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", feed.ID, "url", redactURL(feed.URL))
		return nil, err
	}

	var tasks []model.Task
	for _, comp := range cal.Components {
		var (
			t    model.Task
			perr error
		)
		switch c := comp.(type) {
		case *ical.VEvent:
			t, perr = parseComponent(feed, loc, &c.ComponentBase, ical.ComponentPropertyDtStart)
		case *ical.VTodo:
			t, perr = parseComponent(feed, loc, &c.ComponentBase, ical.ComponentPropertyDtStart, ical.ComponentPropertyDue)
		default:
			continue
		}
		if perr != nil {
			appLog.Warn("ics component skipped", "id", feed.ID, "err", perr)
			continue
		}
		tasks = append(tasks, t)
	}

	appLog.Info("ics parse completed", "id", feed.ID, "url", redactURL(feed.URL), "task_count", len(tasks))
	return tasks, nil
}

func parseComponent(feed Feed, loc *time.Location, cb *ical.ComponentBase, startProps ...ical.ComponentProperty) (model.Task, error) {
	t := model.Task{FeedID: feed.ID}

	if p := cb.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value != "" {
		t.UID = p.Value
	} else {
		t.UID = uuid.NewString()
	}
	if p := cb.GetProperty(ical.ComponentPropertySummary); p != nil {
		t.Summary = p.Value
	}
	if p := cb.GetProperty(ical.ComponentPropertyDescription); p != nil {
		t.Description = p.Value
	}

	var start *ical.IANAProperty
	for _, name := range startProps {
		if start = cb.GetProperty(name); start != nil {
			break
		}
	}
	if start == nil {
		return t, fmt.Errorf("uid %s: no DTSTART", t.UID)
	}
	dtstart, err := startStamp(start.Value, start.ICalParameters)
	if err != nil {
		return t, fmt.Errorf("uid %s: %w", t.UID, err)
	}

	rule := "FREQ=DAILY;COUNT=1"
	if p := cb.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		rule = p.Value
	}
	t.Encoding = recur.Join(dtstart, rule)
	if err := recur.Validate(t.Encoding); err != nil {
		return t, fmt.Errorf("uid %s: %w", t.UID, err)
	}

	for _, p := range cb.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if ex, err := parseICSTime(strings.TrimSpace(part), p.ICalParameters, loc); err == nil {
				t.ExDates = append(t.ExDates, ex)
			}
		}
	}
	return t, nil
}

func param(params map[string][]string, key string) string {
	if vs := params[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// startStamp turns a DTSTART/DUE value into an encoding stamp.
func startStamp(v string, params map[string][]string) (string, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(param(params, "VALUE"), "DATE") || len(v) == len(dateLayout) {
		if _, err := time.Parse(dateLayout, v); err != nil {
			return "", fmt.Errorf("bad date %q: %w", v, err)
		}
		return v + "T000000Z", nil
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(utcLayout, v)
		if err != nil {
			return "", fmt.Errorf("bad time %q: %w", v, err)
		}
		return recur.FormatUTC(t), nil
	}
	if tzid := param(params, "TZID"); tzid != "" {
		loc, err := time.LoadLocation(tzid)
		if err != nil {
			return "", fmt.Errorf("unknown TZID %q: %w", tzid, err)
		}
		t, err := time.ParseInLocation(localLayout, v, loc)
		if err != nil {
			return "", fmt.Errorf("bad time %q: %w", v, err)
		}
		return recur.FormatUTC(t), nil
	}
	if _, err := time.Parse(localLayout, v); err != nil {
		return "", fmt.Errorf("bad time %q: %w", v, err)
	}
	return v, nil
}

// parseICSTime parses an EXDATE value with its parameters.
func parseICSTime(v string, params map[string][]string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcLayout, v)
	}
	if tzid := param(params, "TZID"); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localLayout, v, loc)
	}
	return time.ParseInLocation(dateLayout, v, loc)
}
