package datetext

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	// Tuesday evening.
	ref := time.Date(2025, 9, 9, 20, 0, 0, 0, loc)
	on := func(m time.Month, d, h, min int) time.Time {
		return time.Date(2025, m, d, h, min, 0, 0, loc)
	}

	tests := []struct {
		in      string
		want    time.Time
		hasTime bool
	}{
		{"today", on(9, 9, 0, 0), false},
		{"tomorrow", on(9, 10, 0, 0), false},
		{"yesterday", on(9, 8, 0, 0), false},
		{"tonight", on(9, 9, 20, 0), true},
		{"in 3 days", on(9, 12, 0, 0), false},
		{"in a week", on(9, 16, 0, 0), false},
		{"in two hours", on(9, 9, 22, 0), true},
		{"2 days ago", on(9, 7, 0, 0), false},
		{"next week", on(9, 16, 0, 0), false},
		{"next month", on(10, 9, 0, 0), false},
		{"this weekend", on(9, 13, 0, 0), false},
		{"next weekend", on(9, 20, 0, 0), false},
		{"friday", on(9, 12, 0, 0), false},
		{"Tuesday", on(9, 9, 0, 0), false},
		{"next tuesday", on(9, 16, 0, 0), false},
		{"next Friday", on(9, 19, 0, 0), false},
		{"last friday", on(9, 5, 0, 0), false},
		{"December 25th", on(12, 25, 0, 0), false},
		{"25 December", on(12, 25, 0, 0), false},
		{"September 9", on(9, 9, 0, 0), false},
		{"2025-12-31", on(12, 31, 0, 0), false},
		{"12/25", on(12, 25, 0, 0), false},
		{"at 21:15", on(9, 9, 21, 15), true},
		{"tomorrow at 3pm", on(9, 10, 15, 0), true},
		{"next friday at 9:30am", on(9, 19, 9, 30), true},
		{"tomorrow morning", on(9, 10, 9, 0), true},
		{"call mom on Dec 3 at noon", on(12, 3, 12, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in, ref)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got.Time), "want %s, got %s", tt.want, got.Time)
			assert.Equal(t, tt.hasTime, got.HasTime)
		})
	}
}

func TestParse_RollsForward(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	ref := time.Date(2025, 9, 9, 20, 0, 0, 0, loc)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"March 3", time.Date(2026, 3, 3, 0, 0, 0, 0, loc)},
		{"sep 1", time.Date(2026, 9, 1, 0, 0, 0, 0, loc)},
		{"january", time.Date(2026, 1, 1, 0, 0, 0, 0, loc)},
		{"Dec 1, 2026", time.Date(2026, 12, 1, 0, 0, 0, 0, loc)},
		{"1/15/2026", time.Date(2026, 1, 15, 0, 0, 0, 0, loc)},
		{"feb 29", time.Date(2028, 2, 29, 0, 0, 0, 0, loc)},
		// A time already passed today lands tomorrow.
		{"at 3pm", time.Date(2025, 9, 10, 15, 0, 0, 0, loc)},
		{"noon", time.Date(2025, 9, 10, 12, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in, ref)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got.Time), "want %s, got %s", tt.want, got.Time)
			assert.False(t, got.Time.Before(time.Date(2025, 9, 9, 0, 0, 0, 0, loc)))
		})
	}
}

func TestParse_Cluster(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	ref := time.Date(2025, 9, 9, 20, 0, 0, 0, loc)

	tests := []struct {
		in      string
		want    time.Time
		hasTime bool
		text    string
	}{
		{"3pm tomorrow", time.Date(2025, 9, 10, 15, 0, 0, 0, loc), true, "3pm tomorrow"},
		{"tonight at 9pm", time.Date(2025, 9, 9, 21, 0, 0, 0, loc), true, "tonight at 9pm"},
		{"Dec 1, 2026 at 7:45 am", time.Date(2026, 12, 1, 7, 45, 0, 0, loc), true, ""},
		{"tomorrow, and later on we meet at 5pm", time.Date(2025, 9, 10, 0, 0, 0, 0, loc), false, "tomorrow"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in, ref)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got.Time), "want %s, got %s", tt.want, got.Time)
			assert.Equal(t, tt.hasTime, got.HasTime)
			assert.True(t, got.HasDate)
			if tt.text != "" {
				assert.Equal(t, tt.text, got.Text)
			}
		})
	}
}

func TestParse_Text(t *testing.T) {
	ref := time.Date(2025, 9, 9, 12, 0, 0, 0, time.UTC)

	got, ok := Parse("Pay rent tomorrow", ref)
	require.True(t, ok)
	assert.Equal(t, "tomorrow", got.Text)
	assert.True(t, got.HasDate)

	got, ok = Parse("standup at 9:15", ref)
	require.True(t, ok)
	assert.False(t, got.HasDate)
	assert.True(t, got.HasTime)
}

func TestParse_NoMatch(t *testing.T) {
	ref := time.Date(2025, 9, 9, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"",
		"sometime",
		"xyzabc123",
		strings.Repeat("a", 1000),
		"invalid input that should fail",
		"at 25:00",
		"see you at 2025",
	} {
		name := in
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			_, ok := Parse(in, ref)
			assert.False(t, ok)
		})
	}
}

func TestMonthNumber(t *testing.T) {
	for in, want := range map[string]time.Month{
		"jan": time.January, "Sept": time.September, "sep.": time.September, "DECEMBER": time.December,
	} {
		got, ok := MonthNumber(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := MonthNumber("ja")
	assert.False(t, ok)
	_, ok = MonthNumber("moon")
	assert.False(t, ok)
}
