package ics

import (
	"errors"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "taskrrule/internal/log"
	"taskrrule/internal/model"
	"taskrrule/internal/recur"
)

const productID = "-//taskrrule//EN"

// WriteICS serializes tasks as a VCALENDAR of VEVENTs. Each DTSTART keeps
// the reading its encoding has inside the engine: date schedules become
// VALUE=DATE, schedules repeated on the local calendar carry TZID=loc and
// UTC-pinned schedules keep their Z form. Tasks whose encoding has no
// DTSTART are anchored at their first occurrence.
func WriteICS(w io.Writer, eng *recur.Engine, tasks []model.Task, loc *time.Location) error {
	if eng == nil {
		return errors.New("nil engine")
	}
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	stamp := eng.Now(time.UTC)

	for _, t := range tasks {
		uid := t.UID
		if uid == "" {
			uid = uuid.NewString()
		}
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(t.Summary)
		if t.Description != "" {
			ev.SetDescription(t.Description)
		}

		if !writeStart(ev, eng, t.Encoding, loc) {
			appLog.Warn("ics export: task has no start", "uid", uid)
			continue
		}
		if _, rule := recur.Split(t.Encoding); rule != "" {
			ev.AddRrule(rule)
		}

		_, frame := recur.StartFrame(t.Encoding)
		for _, ex := range t.ExDates {
			switch frame {
			case recur.FrameDate:
				ev.AddProperty(ical.ComponentPropertyExdate, ex.In(loc).Format(dateLayout), ical.WithValue("DATE"))
			case recur.FrameUTC:
				ev.AddProperty(ical.ComponentPropertyExdate, recur.FormatUTC(ex))
			default:
				ev.AddProperty(ical.ComponentPropertyExdate, ex.In(loc).Format(localLayout), ical.WithTZID(loc.String()))
			}
		}
	}

	return cal.SerializeTo(w)
}

func writeStart(ev *ical.VEvent, eng *recur.Engine, enc string, loc *time.Location) bool {
	st, frame := recur.StartFrame(enc)
	switch frame {
	case recur.FrameDate:
		ev.SetProperty(ical.ComponentPropertyDtStart, st.Floating().Format(dateLayout), ical.WithValue("DATE"))
	case recur.FrameUTC:
		ev.SetProperty(ical.ComponentPropertyDtStart, st.String())
	case recur.FrameZoned, recur.FrameLocal:
		ev.SetProperty(ical.ComponentPropertyDtStart, st.Instant(loc).In(loc).Format(localLayout), ical.WithTZID(loc.String()))
	default:
		first, ok := eng.FirstOccurrenceDate(enc, loc)
		if !ok {
			return false
		}
		ev.SetProperty(ical.ComponentPropertyDtStart, first.Format(localLayout), ical.WithTZID(loc.String()))
	}
	return true
}
