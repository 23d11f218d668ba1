package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DayIDLayout = "2006-01-02"

	// ShiftOffset moves the day boundary from midnight to 04:00 so late-night
	// driving stays in the shift it started in.
	ShiftOffset = 4 * time.Hour
	ShiftLength = 24 * time.Hour
)

type Window struct {
	DayID string
	Start time.Time
	End   time.Time
}

type Progress struct {
	Percent        float64
	RemainingHours int
	Expired        bool
}

// ParseDayID parses a YYYY-MM-DD ledger id as local midnight in loc.
func ParseDayID(dayID string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	trimmed := strings.TrimSpace(dayID)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: day id is required", ErrValidation)
	}
	t, err := time.ParseInLocation(DayIDLayout, trimmed, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day id %q must be YYYY-MM-DD", ErrValidation, dayID)
	}
	return t, nil
}

// ShiftWindow returns [04:00 on dayID, +24h).
func ShiftWindow(dayID string, loc *time.Location) (Window, error) {
	day, err := ParseDayID(dayID, loc)
	if err != nil {
		return Window{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 4, 0, 0, 0, day.Location())
	return Window{
		DayID: day.Format(DayIDLayout),
		Start: start,
		End:   start.Add(ShiftLength),
	}, nil
}

// ShiftDayOf returns the id of the shift day whose window contains t.
func ShiftDayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Add(-ShiftOffset).Format(DayIDLayout)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) Progress(now time.Time) Progress {
	var pct float64
	switch {
	case now.Before(w.Start):
		pct = 0
	case now.After(w.End):
		pct = 100
	default:
		pct = float64(now.Sub(w.Start)) / float64(w.End.Sub(w.Start)) * 100
	}

	remaining := w.End.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return Progress{
		Percent:        pct,
		RemainingHours: int(math.Ceil(float64(remaining) / float64(time.Hour))),
		Expired:        now.After(w.End),
	}
}
