package ics

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"taskrrule/internal/recur"
)

// frozen is Tuesday 2025-09-09, 20:00 in Manila.
var frozen = time.Date(2025, 9, 9, 12, 0, 0, 0, time.UTC)

func manila(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	return loc
}

func testEngine() *recur.Engine {
	return recur.New(recur.WithClock(func() time.Time { return frozen }))
}

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var sampleFeed = calendar(
	"BEGIN:VEVENT",
	"UID:standup",
	"DTSTAMP:20250901T000000Z",
	"SUMMARY:Standup",
	"DTSTART;TZID=Asia/Manila:20250908T093000",
	"RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
	"EXDATE;TZID=Asia/Manila:20250910T093000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:rent",
	"DTSTAMP:20250901T000000Z",
	"SUMMARY:Pay rent",
	"DTSTART;VALUE=DATE:20250901",
	"RRULE:FREQ=MONTHLY",
	"END:VEVENT",
	"BEGIN:VTODO",
	"UID:dentist",
	"DTSTAMP:20250901T000000Z",
	"SUMMARY:Dentist",
	"DUE:20250915T020000Z",
	"END:VTODO",
	"BEGIN:VEVENT",
	"DTSTAMP:20250901T000000Z",
	"SUMMARY:No start",
	"END:VEVENT",
)
