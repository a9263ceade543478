package ics

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "taskrrule/internal/log"
	"taskrrule/internal/model"
)

// Library holds the tasks of all feeds as of the last refresh. A feed that
// fails to fetch or parse keeps its previous tasks.
type Library struct {
	fetcher *Fetcher
	feeds   []Feed
	loc     *time.Location
	now     func() time.Time

	mu      sync.RWMutex
	byFeed  map[string][]model.Task
	updated time.Time
}

// NewLibrary returns an empty library over feeds.
func NewLibrary(fetcher *Fetcher, feeds []Feed, loc *time.Location) *Library {
	if loc == nil {
		loc = time.Local
	}
	return &Library{
		fetcher: fetcher,
		feeds:   feeds,
		loc:     loc,
		now:     time.Now,
		byFeed:  make(map[string][]model.Task),
	}
}

// Refresh fetches and parses every feed. The returned error joins the
// per-feed failures.
func (l *Library) Refresh(ctx context.Context) error {
	bodies, errs := l.fetcher.FetchAll(ctx, l.feeds)

	parsed := make(map[string][]model.Task, len(bodies))
	for _, b := range bodies {
		tasks, err := ParseICS(b.Feed, b.Body, l.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed[b.Feed.ID] = tasks
	}

	l.mu.Lock()
	for id, tasks := range parsed {
		l.byFeed[id] = tasks
	}
	l.updated = l.now()
	l.mu.Unlock()

	appLog.Info("library refreshed", "feeds", len(l.feeds), "ok", len(parsed), "failed", len(errs))
	return errors.Join(errs...)
}

// Tasks returns a copy of all tasks in feed order.
func (l *Library) Tasks() []model.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Task
	for _, f := range l.feeds {
		out = append(out, l.byFeed[f.ID]...)
	}
	return out
}

// Updated is the time of the last refresh, zero before the first.
func (l *Library) Updated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updated
}
