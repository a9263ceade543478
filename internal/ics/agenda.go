package ics

import (
	"errors"
	"sort"
	"time"

	appLog "taskrrule/internal/log"
	"taskrrule/internal/model"
	"taskrrule/internal/recur"
)

const defaultMaxPerTask = 500

// AgendaConfig bounds an agenda expansion.
type AgendaConfig struct {
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location
	// From and To are the inclusive window.
	From, To time.Time
	// MaxPerTask caps the occurrences of a single task. Zero means 500.
	MaxPerTask int
}

// AgendaResult is the sorted occurrence list with the UIDs that hit the cap.
type AgendaResult struct {
	Occurrences []model.Occurrence
	Truncated   []string
}

// ExpandAgenda lists every occurrence of tasks inside the window, honoring
// EXDATEs, sorted by start.
func ExpandAgenda(eng *recur.Engine, tasks []model.Task, cfg AgendaConfig) (AgendaResult, error) {
	var res AgendaResult
	if cfg.To.Before(cfg.From) {
		return res, errors.New("agenda: window ends before it starts")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxPerTask <= 0 {
		cfg.MaxPerTask = defaultMaxPerTask
	}

	for _, t := range tasks {
		starts, cut := eng.Expand(t.Encoding, cfg.Location, cfg.From, cfg.To, cfg.MaxPerTask, t.ExDates)
		if cut {
			res.Truncated = append(res.Truncated, t.UID)
			appLog.Warn("agenda: occurrences truncated", "uid", t.UID, "cap", cfg.MaxPerTask)
		}
		if len(starts) == 0 {
			continue
		}
		_, frame := recur.StartFrame(t.Encoding)
		allDay := frame == recur.FrameDate || (frame == recur.FrameNone && !recur.HasExplicitTime(t.Encoding))
		repeat := ""
		if recur.IsRecurring(t.Encoding) {
			repeat = recur.DisplayText(t.Encoding)
		}
		for _, s := range starts {
			res.Occurrences = append(res.Occurrences, model.Occurrence{
				FeedID:      t.FeedID,
				UID:         t.UID,
				InstanceKey: s.Format(time.RFC3339),
				Summary:     t.Summary,
				AllDay:      allDay,
				Start:       s,
				Repeat:      repeat,
			})
		}
	}

	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		a, b := res.Occurrences[i], res.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Summary < b.Summary
	})
	return res, nil
}
