package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskrrule/internal/model"
)

func TestExpandAgenda(t *testing.T) {
	loc := manila(t)
	tasks, err := ParseICS(Feed{ID: "work"}, sampleFeed, loc)
	require.NoError(t, err)

	res, err := ExpandAgenda(testEngine(), tasks, AgendaConfig{
		Location: loc,
		From:     time.Date(2025, 9, 8, 0, 0, 0, 0, loc),
		To:       time.Date(2025, 9, 15, 23, 59, 59, 0, loc),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Truncated)

	var got []string
	for _, o := range res.Occurrences {
		got = append(got, o.UID+" "+o.Start.Format("Jan 2 15:04"))
		assert.False(t, o.AllDay)
	}
	assert.Equal(t, []string{
		"standup Sep 8 09:30",
		"standup Sep 9 09:30",
		"standup Sep 11 09:30",
		"standup Sep 12 09:30",
		"standup Sep 15 09:30",
		"dentist Sep 15 10:00",
	}, got)
	assert.Equal(t, "Every weekday", res.Occurrences[0].Repeat)
	assert.Empty(t, res.Occurrences[5].Repeat)
	assert.Equal(t, "2025-09-08T09:30:00+08:00", res.Occurrences[0].InstanceKey)
}

func TestExpandAgenda_AllDayAndCap(t *testing.T) {
	loc := manila(t)
	now := frozen.In(loc)
	tasks := []model.Task{{UID: "water", Summary: "Water plants", Encoding: "RRULE:FREQ=DAILY"}}

	res, err := ExpandAgenda(testEngine(), tasks, AgendaConfig{
		Location:   loc,
		From:       now,
		To:         now.AddDate(0, 0, 7),
		MaxPerTask: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"water"}, res.Truncated)
	require.Len(t, res.Occurrences, 3)
	assert.True(t, res.Occurrences[0].AllDay)
	assert.Equal(t, time.Date(2025, 9, 10, 0, 0, 0, 0, loc), res.Occurrences[0].Start)
}

func TestExpandAgenda_BadWindow(t *testing.T) {
	_, err := ExpandAgenda(testEngine(), nil, AgendaConfig{From: frozen, To: frozen.Add(-time.Hour)})
	assert.Error(t, err)
}
