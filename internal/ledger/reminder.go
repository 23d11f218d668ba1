package ledger

import "time"

type ReminderLevel string

const (
	ReminderUrgent  ReminderLevel = "urgent"
	ReminderWarning ReminderLevel = "warning"
)

// WarningLead is how close to the end of its shift window an open day
// triggers a warning. With a 04:00 start that is 21:00 local.
const WarningLead = 7 * time.Hour

type Reminder struct {
	Level ReminderLevel
	DayID string
}

// ReminderFor returns a nudge about an open day, if any.
// A past day left open beats the evening reminder for today.
func ReminderFor(ledgers []Ledger, now time.Time, loc *time.Location) (Reminder, bool) {
	if loc == nil {
		loc = time.Local
	}
	today := ShiftDayOf(now, loc)

	for _, l := range ledgers {
		if l.IsOpen() && l.ID < today {
			return Reminder{Level: ReminderUrgent, DayID: l.ID}, true
		}
	}

	w, err := ShiftWindow(today, loc)
	if err != nil {
		return Reminder{}, false
	}
	if w.End.Sub(now) <= WarningLead {
		for _, l := range ledgers {
			if l.IsOpen() && l.ID == today {
				return Reminder{Level: ReminderWarning, DayID: l.ID}, true
			}
		}
	}
	return Reminder{}, false
}
