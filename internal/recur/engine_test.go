package recur

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

// frozen is Tuesday 2025-09-09, 20:00 in Manila.
var frozen = time.Date(2025, 9, 9, 12, 0, 0, 0, time.UTC)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func newTestEngine(t *testing.T) (*Engine, *time.Location) {
	t.Helper()
	return New(WithClock(func() time.Time { return frozen })), mustLoc(t, "Asia/Manila")
}

func day(loc *time.Location, y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
