package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQuickRecurrence(t *testing.T) {
	e, loc := newTestEngine(t)

	tests := []struct {
		name    string
		date    time.Time
		freq    QuickFrequency
		basedOn BasedOn
		want    string
	}{
		{"daily", day(loc, 2025, 9, 9), QuickDaily, Scheduled, "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY"},
		{"weekly on tuesday", day(loc, 2025, 9, 9), QuickWeekly, Scheduled, "DTSTART:20250909T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=TU"},
		{"weekly on sunday", day(loc, 2025, 9, 7), QuickWeekly, Scheduled, "DTSTART:20250907T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=SU"},
		{"weekly on saturday", day(loc, 2025, 9, 6), QuickWeekly, Scheduled, "DTSTART:20250906T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=SA"},
		{"weekdays", day(loc, 2025, 9, 9), QuickWeekdays, Scheduled, "DTSTART:20250909T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
		{"weekdays from a sunday", day(loc, 2025, 9, 7), QuickWeekdays, Scheduled, "DTSTART:20250907T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
		{"monthly", day(loc, 2025, 9, 9), QuickMonthly, Scheduled, "DTSTART:20250909T000000Z\nRRULE:FREQ=MONTHLY;BYMONTHDAY=9"},
		{"monthly on the 31st", day(loc, 2025, 1, 31), QuickMonthly, Scheduled, "DTSTART:20250131T000000Z\nRRULE:FREQ=MONTHLY;BYMONTHDAY=31"},
		{"yearly", day(loc, 2025, 12, 25), QuickYearly, Scheduled, "DTSTART:20251225T000000Z\nRRULE:FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25"},
		{"yearly on leap day", day(loc, 2024, 2, 29), QuickYearly, Scheduled, "DTSTART:20240229T000000Z\nRRULE:FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29"},
		{"late evening keeps the local date", time.Date(2025, 9, 9, 23, 59, 59, 0, loc), QuickDaily, Scheduled, "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY"},
		{"completed restarts from now", day(loc, 2025, 12, 25), QuickDaily, Completed, "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY"},
		{"completed weekly uses today's weekday", day(loc, 2025, 12, 25), QuickWeekly, Completed, "DTSTART:20250909T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=TU"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.GenerateQuickRecurrence(tt.date, tt.freq, loc, tt.basedOn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("zero date", func(t *testing.T) {
		_, err := e.GenerateQuickRecurrence(time.Time{}, QuickDaily, loc, Scheduled)
		assert.ErrorIs(t, err, ErrNoDate)
	})

	t.Run("unknown frequency", func(t *testing.T) {
		_, err := e.GenerateQuickRecurrence(day(loc, 2025, 9, 9), QuickFrequency("hourly"), loc, Scheduled)
		assert.ErrorIs(t, err, ErrNoFrequency)
	})

	t.Run("first occurrence is the picked date", func(t *testing.T) {
		s, err := e.GenerateQuickRecurrence(day(loc, 2025, 9, 9), QuickWeekly, loc, Scheduled)
		require.NoError(t, err)
		first, ok := e.FirstOccurrenceDate(s, loc)
		require.True(t, ok)
		assert.Equal(t, day(loc, 2025, 9, 9), first)
	})
}

func TestParseQuickFrequency(t *testing.T) {
	q, err := ParseQuickFrequency(" Weekdays ")
	require.NoError(t, err)
	assert.Equal(t, QuickWeekdays, q)

	_, err = ParseQuickFrequency("fortnightly")
	assert.ErrorIs(t, err, ErrNoFrequency)
}

func TestGenerateRecurrenceWithPreservedTime(t *testing.T) {
	e, loc := newTestEngine(t)

	// 15:30 in Manila.
	existing := "DTSTART:20250901T073000Z\nRRULE:FREQ=DAILY;COUNT=1"
	got, err := e.GenerateRecurrenceWithPreservedTime(existing, QuickWeekly, day(loc, 2025, 9, 12), loc, Scheduled)
	require.NoError(t, err)
	assert.Equal(t, "DTSTART:20250912T073000Z\nRRULE:FREQ=WEEKLY;BYDAY=FR", got)

	first, ok := e.FirstOccurrenceDate(got, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 12, 15, 30, 0, 0, loc), first)

	t.Run("no time to keep", func(t *testing.T) {
		got, err := e.GenerateRecurrenceWithPreservedTime("DTSTART:20250901T000000Z\nRRULE:FREQ=DAILY;COUNT=1", QuickDaily, day(loc, 2025, 9, 12), loc, Scheduled)
		require.NoError(t, err)
		assert.Equal(t, "DTSTART:20250912T000000Z\nRRULE:FREQ=DAILY", got)
	})
}

func TestGenerateCustomRecurrence(t *testing.T) {
	e, loc := newTestEngine(t)
	// Sunday evening in Manila.
	sunday := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC).In(loc)

	tests := []struct {
		name     string
		cfg      Config
		existing string
		want     string
	}{
		{
			name: "weekly with selected days",
			cfg:  Config{Frequency: Weekly, Interval: 1, EndType: EndNever, SelectedDays: []time.Weekday{time.Monday, time.Tuesday}},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,TU",
		},
		{
			name: "weekly falls back to the picked weekday",
			cfg:  Config{Frequency: Weekly, Interval: 1},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=SU",
		},
		{
			name: "selected days keep their order",
			cfg:  Config{Frequency: Weekly, SelectedDays: []time.Weekday{time.Friday, time.Monday}},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=FR,MO",
		},
		{
			name: "daily with interval",
			cfg:  Config{Frequency: Daily, Interval: 3},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=DAILY;INTERVAL=3",
		},
		{
			name: "monthly until a date",
			cfg:  Config{Frequency: Monthly, Interval: 2, EndType: EndOnDate, EndDate: day(loc, 2025, 12, 31)},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=7;UNTIL=20251231T235959Z",
		},
		{
			name: "yearly",
			cfg:  Config{Frequency: Yearly},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=YEARLY;BYMONTH=9;BYMONTHDAY=7",
		},
		{
			name:     "keeps the existing time of day",
			cfg:      Config{Frequency: Daily, EndType: EndOnDate, EndDate: day(loc, 2025, 9, 30)},
			existing: "DTSTART:20250901T013000Z\nRRULE:FREQ=DAILY;COUNT=1",
			want:     "DTSTART:20250907T013000Z\nRRULE:FREQ=DAILY;UNTIL=20250930T155959Z",
		},
		{
			name: "end date ignored when never ending",
			cfg:  Config{Frequency: Daily, EndType: EndNever, EndDate: day(loc, 2025, 12, 31)},
			want: "DTSTART:20250907T000000Z\nRRULE:FREQ=DAILY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.GenerateCustomRecurrence(sunday, tt.cfg, loc, tt.existing)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, Validate(got))
		})
	}

	t.Run("invalid frequency", func(t *testing.T) {
		_, err := e.GenerateCustomRecurrence(sunday, Config{Frequency: "HOURLY"}, loc, "")
		assert.ErrorIs(t, err, ErrNoFrequency)
	})
}

func TestGenerateSingleOccurrence(t *testing.T) {
	e, loc := newTestEngine(t)

	s := GenerateSingleOccurrence(time.Date(2025, 9, 9, 23, 0, 0, 0, loc), loc)
	assert.Equal(t, "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1", s)
	assert.True(t, IsSingleOccurrence(s))

	first, ok := e.FirstOccurrenceDate(s, loc)
	require.True(t, ok)
	assert.Equal(t, day(loc, 2025, 9, 9), first)
}

func TestGenerateTimeOnlyRecurrence(t *testing.T) {
	e, loc := newTestEngine(t)

	s := e.GenerateTimeOnlyRecurrence(time.Date(2000, 1, 1, 15, 30, 0, 0, loc), loc)
	assert.Equal(t, "DTSTART:20250909T153000\nRRULE:FREQ=DAILY;COUNT=1", s)

	tod, ok := e.ParseTimeOfDay(s, loc)
	require.True(t, ok)
	assert.Equal(t, 15, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
}

func TestReplaceTimeOfDay(t *testing.T) {
	e, loc := newTestEngine(t)
	at := func(h, m int) *time.Time {
		v := time.Date(2000, 1, 1, h, m, 0, 0, loc)
		return &v
	}

	tests := []struct {
		name string
		in   string
		t    *time.Time
		want string
	}{
		{
			name: "clear keeps the date",
			in:   "DTSTART:20250909T073000Z\nRRULE:FREQ=DAILY;COUNT=1",
			want: "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1",
		},
		{
			name: "set on a date stamp",
			in:   "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1",
			t:    at(15, 30),
			want: "DTSTART:20250909T073000Z\nRRULE:FREQ=DAILY;COUNT=1",
		},
		{
			name: "early morning crosses the UTC date",
			in:   "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1",
			t:    at(7, 0),
			want: "DTSTART:20250908T230000Z\nRRULE:FREQ=DAILY;COUNT=1",
		},
		{
			name: "BY time fields follow the stamp",
			in:   "DTSTART:20250910T070000Z\nRRULE:FREQ=DAILY;COUNT=1;BYHOUR=7;BYMINUTE=0",
			t:    at(9, 15),
			want: "DTSTART:20250910T011500Z\nRRULE:FREQ=DAILY;COUNT=1;BYHOUR=1;BYMINUTE=15",
		},
		{
			name: "local stamp stays local",
			in:   "DTSTART:20250909T153000\nRRULE:FREQ=DAILY;COUNT=1",
			t:    at(8, 45),
			want: "DTSTART:20250909T084500\nRRULE:FREQ=DAILY;COUNT=1",
		},
		{
			name: "rule without DTSTART",
			in:   "RRULE:FREQ=DAILY;BYHOUR=9",
			t:    at(18, 45),
			want: "RRULE:FREQ=DAILY;BYHOUR=18;BYMINUTE=45",
		},
		{
			name: "rule without DTSTART on the hour",
			in:   "RRULE:FREQ=DAILY;BYHOUR=9;BYMINUTE=30",
			t:    at(7, 0),
			want: "RRULE:FREQ=DAILY;BYHOUR=7",
		},
		{
			name: "clear rule without DTSTART",
			in:   "RRULE:FREQ=DAILY;BYHOUR=9;BYMINUTE=30",
			want: "RRULE:FREQ=DAILY",
		},
		{
			name: "empty",
			in:   "",
			t:    at(9, 0),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ReplaceTimeOfDay(tt.in, tt.t, loc))
		})
	}

	t.Run("shown date survives", func(t *testing.T) {
		in := "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1"
		out := e.ReplaceTimeOfDay(in, at(7, 0), loc)
		first, ok := e.FirstOccurrenceDate(out, loc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 9, 9, 7, 0, 0, 0, loc), first)
	})
}

func TestUpdateWithDate(t *testing.T) {
	e, loc := newTestEngine(t)
	target := day(loc, 2025, 9, 19) // Friday

	tests := []struct {
		name     string
		existing string
		want     string
	}{
		{"empty", "", "DTSTART:20250919T000000Z\nRRULE:FREQ=DAILY;COUNT=1"},
		{"single date", "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1", "DTSTART:20250919T000000Z\nRRULE:FREQ=DAILY;COUNT=1"},
		{"single with time", "DTSTART:20250909T073000Z\nRRULE:FREQ=DAILY;COUNT=1", "DTSTART:20250919T073000Z\nRRULE:FREQ=DAILY;COUNT=1"},
		{"weekly moves weekday", "DTSTART:20250909T000000Z\nRRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=TU", "DTSTART:20250919T000000Z\nRRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=FR"},
		{"weekdays stay weekdays", "DTSTART:20250909T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", "DTSTART:20250919T000000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
		{"monthly keeps count", "DTSTART:20250909T000000Z\nRRULE:FREQ=MONTHLY;BYMONTHDAY=9;COUNT=6", "DTSTART:20250919T000000Z\nRRULE:FREQ=MONTHLY;BYMONTHDAY=19;COUNT=6"},
		{"yearly keeps until", "DTSTART:20250909T000000Z\nRRULE:FREQ=YEARLY;BYMONTH=9;BYMONTHDAY=9;UNTIL=20301231T235959Z", "DTSTART:20250919T000000Z\nRRULE:FREQ=YEARLY;BYMONTH=9;BYMONTHDAY=19;UNTIL=20301231T235959Z"},
		{"recurring with time", "DTSTART:20250909T073000Z\nRRULE:FREQ=DAILY", "DTSTART:20250919T073000Z\nRRULE:FREQ=DAILY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.UpdateWithDate(tt.existing, target, loc))
		})
	}
}

func TestShortcuts(t *testing.T) {
	e, loc := newTestEngine(t)

	assert.Equal(t, "DTSTART:20250909T000000Z\nRRULE:FREQ=DAILY;COUNT=1", e.Today(loc))
	assert.Equal(t, "DTSTART:20250910T000000Z\nRRULE:FREQ=DAILY;COUNT=1", e.Tomorrow(loc))
	assert.Equal(t, "DTSTART:20250913T000000Z\nRRULE:FREQ=DAILY;COUNT=1", e.NextWeekend(loc))

	saturday := New(WithClock(func() time.Time { return time.Date(2025, 9, 13, 2, 0, 0, 0, time.UTC) }))
	assert.Equal(t, "DTSTART:20250920T000000Z\nRRULE:FREQ=DAILY;COUNT=1", saturday.NextWeekend(loc))
}
