package model

import "time"

// Task is a schedulable item: its schedule is an opaque DTSTART/RRULE
// encoding owned by internal/recur.
type Task struct {
	FeedID string `json:"feed_id,omitempty"` // imported feed ID, empty for API-supplied tasks
	UID    string `json:"uid,omitempty"`     // iCalendar UID

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`

	// Encoding is the "DTSTART:...\nRRULE:..." schedule.
	Encoding string `json:"encoding"`

	// ExDates are excluded occurrence starts.
	ExDates []time.Time `json:"exdates,omitempty"`
}

// Occurrence is a single concrete instance of a task, in the display
// timezone.
type Occurrence struct {
	FeedID string `json:"feed_id,omitempty"`
	UID    string `json:"uid"`

	// InstanceKey uniquely identifies the occurrence within its task.
	InstanceKey string `json:"instance_key"`

	Summary string `json:"summary"`

	// AllDay is set for date-only schedules; Start is then local midnight.
	AllDay bool      `json:"all_day"`
	Start  time.Time `json:"start"`

	// Repeat is the short schedule phrase, e.g. "Every weekday".
	Repeat string `json:"repeat,omitempty"`
}
