package ledger

import (
	"sort"
	"strings"
	"time"
)

// DroppedRow records a raw row that could not be placed in any ledger.
type DroppedRow struct {
	ID     string
	Reason string
}

type Result struct {
	Ledgers []Ledger
	Dropped []DroppedRow
	// OpenViolation lists every OPEN day id when more than one is open.
	OpenViolation []string
}

func (r Result) Has(dayID string) bool {
	_, ok := r.Find(dayID)
	return ok
}

func (r Result) Find(dayID string) (Ledger, bool) {
	for _, l := range r.Ledgers {
		if l.ID == dayID {
			return l, true
		}
	}
	return Ledger{}, false
}

// Reconcile buckets rows into per-day ledgers and applies status records.
//
// A day with transactions but no status record is CLOSED. Rows that are
// malformed are dropped and reported rather than failing the whole pass.
// The output depends only on the inputs, so repeated calls are identical.
func Reconcile(driverID string, rows []Row, statuses []DayStatus, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}

	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})

	var res Result
	buckets := make(map[string]*Ledger, 16)
	seen := make(map[string]bool, len(sorted))

	for _, row := range sorted {
		if reason := degradedReason(row); reason != "" {
			res.Dropped = append(res.Dropped, DroppedRow{ID: row.ID, Reason: reason})
			continue
		}
		if seen[row.ID] {
			res.Dropped = append(res.Dropped, DroppedRow{ID: row.ID, Reason: "duplicate id"})
			continue
		}
		seen[row.ID] = true

		dayID := ShiftDayOf(row.OccurredAt, loc)
		bucket, ok := buckets[dayID]
		if !ok {
			bucket = newBucket(driverID, dayID, loc)
			if bucket == nil {
				res.Dropped = append(res.Dropped, DroppedRow{ID: row.ID, Reason: "unbucketable timestamp"})
				continue
			}
			buckets[dayID] = bucket
		}
		bucket.Transactions = append(bucket.Transactions, row.Transaction())
	}

	for _, st := range statuses {
		status, ok := ParseStatus(string(st.Status))
		if !ok {
			continue
		}
		w, err := ShiftWindow(st.DayID, loc)
		if err != nil {
			continue
		}
		bucket, exists := buckets[w.DayID]
		if !exists {
			keep := status == StatusOpen || st.ClosedAt != nil
			if !keep {
				continue
			}
			bucket = newBucket(driverID, w.DayID, loc)
			buckets[w.DayID] = bucket
		}
		bucket.Status = status
		bucket.OpenedAt = cloneTime(st.OpenedAt)
		bucket.ClosedAt = cloneTime(st.ClosedAt)
	}

	res.Ledgers = make([]Ledger, 0, len(buckets))
	for _, b := range buckets {
		res.Ledgers = append(res.Ledgers, *b)
	}
	sort.Slice(res.Ledgers, func(i, j int) bool {
		return res.Ledgers[i].ID > res.Ledgers[j].ID
	})

	var open []string
	for _, l := range res.Ledgers {
		if l.IsOpen() {
			open = append(open, l.ID)
		}
	}
	if len(open) > 1 {
		res.OpenViolation = open
	}
	return res
}

func newBucket(driverID, dayID string, loc *time.Location) *Ledger {
	w, err := ShiftWindow(dayID, loc)
	if err != nil {
		return nil
	}
	return &Ledger{
		ID:           w.DayID,
		DriverID:     driverID,
		ShiftStart:   w.Start,
		Status:       StatusClosed,
		Transactions: []Transaction{},
	}
}

func degradedReason(row Row) string {
	switch {
	case row.Invalid != "":
		return row.Invalid
	case strings.TrimSpace(row.ID) == "":
		return "missing id"
	case row.OccurredAt.IsZero():
		return "missing or malformed timestamp"
	case row.OccurredAt.Year() < 1970 || row.OccurredAt.Year() > 9999:
		return "timestamp out of range"
	case row.Kind != KindIncome && row.Kind != KindExpense:
		return "unknown kind"
	case row.Amount.IsNegative():
		return "negative amount"
	}
	return ""
}
