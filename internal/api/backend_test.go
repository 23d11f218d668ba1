package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lachiem1/driverlog/internal/ledger"
)

var testLoc = time.FixedZone("EET", 2*60*60)

func routeClient(routes map[string]func() *http.Response) *Client {
	return testClient(func(req *http.Request) (*http.Response, error) {
		key := req.Method + " " + req.URL.Path
		if fn, ok := routes[key]; ok {
			return fn(), nil
		}
		return respond(http.StatusNotFound, `{}`), nil
	})
}

func TestBackendHasNoEditOrDelete(t *testing.T) {
	b := NewBackend(testClient(nil), testLoc)
	if caps := b.Capabilities(); caps.Edit || caps.Delete {
		t.Fatalf("Capabilities() = %+v, want none", caps)
	}
	if err := b.UpdateTransaction(context.Background(), "d1", ledger.Transaction{}); !errors.Is(err, ledger.ErrUnsupported) {
		t.Fatalf("UpdateTransaction() err = %v, want ErrUnsupported", err)
	}
	if err := b.DeleteTransaction(context.Background(), "d1", "x"); !errors.Is(err, ledger.ErrUnsupported) {
		t.Fatalf("DeleteTransaction() err = %v, want ErrUnsupported", err)
	}
}

func TestFetchTransactionsKeepsMalformedRowsForReconcile(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"GET /api/v1/transactions": func() *http.Response {
			return respond(http.StatusOK, `[
				{"id":1,"amount":10,"type":"income","description":" Ana ","timestamp":"2024-03-10T08:00:00Z"},
				{"id":2,"amount":5,"type":"income","description":"Bo","timestamp":"yesterday"},
				{"id":3,"amount":5,"type":"refund","description":"Cy","timestamp":"2024-03-10T08:00:00Z"},
				{"id":4,"amount":"n/a","type":"income","description":"Di","timestamp":"2024-03-10T08:00:00Z"},
				{"id":5,"amount":"7.25","type":"expense","description":"Ed","timestamp":"2024-03-10T09:00:00Z"}
			]`)
		},
	}), testLoc)

	rows, err := b.FetchTransactions(context.Background(), "d1")
	if err != nil {
		t.Fatalf("FetchTransactions() unexpected error: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("len(rows) = %d, want 5", len(rows))
	}
	if rows[0].ClientName != "Ana" || rows[0].DriverID != "d1" {
		t.Fatalf("rows[0] = %+v", rows[0])
	}
	if !rows[1].OccurredAt.IsZero() {
		t.Fatalf("rows[1].OccurredAt = %v, want zero", rows[1].OccurredAt)
	}

	if rows[3].Invalid != "malformed amount" {
		t.Fatalf("rows[3].Invalid = %q, want %q", rows[3].Invalid, "malformed amount")
	}
	if rows[4].Invalid != "" || !rows[4].Amount.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("rows[4] = %+v, want amount 7.25", rows[4])
	}

	res := ledger.Reconcile("d1", rows, nil, testLoc)
	if len(res.Dropped) != 3 {
		t.Fatalf("dropped = %+v, want 3 rows", res.Dropped)
	}
	l, ok := res.Find("2024-03-10")
	if !ok || len(l.Transactions) != 2 {
		t.Fatalf("ledger = %+v, %v, want two transactions", l, ok)
	}
}

func TestFetchDayStatusesNoActiveDay(t *testing.T) {
	b := NewBackend(routeClient(nil), testLoc)
	statuses, err := b.FetchDayStatuses(context.Background(), "d1")
	if err != nil {
		t.Fatalf("FetchDayStatuses() unexpected error: %v", err)
	}
	if statuses == nil || len(statuses) != 0 {
		t.Fatalf("FetchDayStatuses() = %#v, want empty slice", statuses)
	}
}

func TestFetchDayStatusesUsesShiftDayOfOpenedAt(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		// 01:30 local on the 11th still belongs to the 10th's shift.
		"GET /api/v1/driver/day/current": func() *http.Response {
			return respond(http.StatusOK, `{"id":4,"date":"2024-03-11","status":"open","opened_at":"2024-03-10T23:30:00Z","closed_at":null}`)
		},
	}), testLoc)

	statuses, err := b.FetchDayStatuses(context.Background(), "d1")
	if err != nil {
		t.Fatalf("FetchDayStatuses() unexpected error: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("len(statuses) = %d, want 1", len(statuses))
	}
	if statuses[0].DayID != "2024-03-10" || statuses[0].Status != ledger.StatusOpen {
		t.Fatalf("status = %+v, want 2024-03-10 OPEN", statuses[0])
	}
}

func TestFetchDayStatusesTransientFailure(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"GET /api/v1/driver/day/current": func() *http.Response { return respond(http.StatusInternalServerError, ``) },
	}), testLoc)
	if _, err := b.FetchDayStatuses(context.Background(), "d1"); !errors.Is(err, ledger.ErrTransientIO) {
		t.Fatalf("FetchDayStatuses() err = %v, want ErrTransientIO", err)
	}
}

func TestOpenDayConflictOnSameDayIsIdempotent(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"POST /api/v1/driver/day/open": func() *http.Response { return respond(http.StatusConflict, `{"message":"already open"}`) },
		"GET /api/v1/driver/day/current": func() *http.Response {
			return respond(http.StatusOK, `{"id":4,"status":"open","opened_at":"2024-03-10T06:00:00Z"}`)
		},
	}), testLoc)

	st, err := b.SetDayStatus(context.Background(), "d1", "2024-03-10", ledger.StatusOpen)
	if err != nil {
		t.Fatalf("SetDayStatus() unexpected error: %v", err)
	}
	if st.DayID != "2024-03-10" {
		t.Fatalf("DayID = %q, want %q", st.DayID, "2024-03-10")
	}
}

func TestOpenDayConflictOnOtherDay(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"POST /api/v1/driver/day/open": func() *http.Response { return respond(http.StatusConflict, `{}`) },
		"GET /api/v1/driver/day/current": func() *http.Response {
			return respond(http.StatusOK, `{"id":3,"status":"open","opened_at":"2024-03-09T06:00:00Z"}`)
		},
	}), testLoc)

	_, err := b.SetDayStatus(context.Background(), "d1", "2024-03-10", ledger.StatusOpen)
	if !errors.Is(err, ledger.ErrAlreadyOpen) {
		t.Fatalf("SetDayStatus() err = %v, want ErrAlreadyOpen", err)
	}
}

func TestCloseDayReturnsClosedStatus(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"POST /api/v1/driver/day/close": func() *http.Response {
			return respond(http.StatusOK, `{"id":4,"status":"closed","opened_at":"2024-03-10T06:00:00Z","closed_at":"2024-03-11T01:00:00Z"}`)
		},
	}), testLoc)

	st, err := b.SetDayStatus(context.Background(), "d1", "2024-03-10", ledger.StatusClosed)
	if err != nil {
		t.Fatalf("SetDayStatus() unexpected error: %v", err)
	}
	if st.Status != ledger.StatusClosed || st.ClosedAt == nil {
		t.Fatalf("status = %+v, want CLOSED with closed_at", st)
	}
}

func TestCloseDayAlreadyClosedOnServerIsNoOp(t *testing.T) {
	tests := []struct {
		name    string
		close   *http.Response
		current func() *http.Response
	}{
		{
			name:    "no active day",
			close:   respond(http.StatusNotFound, `{"message":"no open day"}`),
			current: func() *http.Response { return respond(http.StatusNotFound, `{}`) },
		},
		{
			name:  "current day closed",
			close: respond(http.StatusConflict, `{"message":"day already closed"}`),
			current: func() *http.Response {
				return respond(http.StatusOK, `{"id":4,"status":"closed","opened_at":"2024-03-10T06:00:00Z","closed_at":"2024-03-11T01:00:00Z"}`)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBackend(routeClient(map[string]func() *http.Response{
				"POST /api/v1/driver/day/close":  func() *http.Response { return tc.close },
				"GET /api/v1/driver/day/current": tc.current,
			}), testLoc)

			st, err := b.SetDayStatus(context.Background(), "d1", "2024-03-10", ledger.StatusClosed)
			if err != nil {
				t.Fatalf("SetDayStatus() unexpected error: %v", err)
			}
			if st.DayID != "2024-03-10" || st.Status != ledger.StatusClosed {
				t.Fatalf("status = %+v, want CLOSED 2024-03-10", st)
			}
		})
	}
}

func TestCloseDayConflictWhileStillOpenFails(t *testing.T) {
	b := NewBackend(routeClient(map[string]func() *http.Response{
		"POST /api/v1/driver/day/close": func() *http.Response { return respond(http.StatusConflict, `{}`) },
		"GET /api/v1/driver/day/current": func() *http.Response {
			return respond(http.StatusOK, `{"id":4,"status":"open","opened_at":"2024-03-10T06:00:00Z"}`)
		},
	}), testLoc)

	if _, err := b.SetDayStatus(context.Background(), "d1", "2024-03-10", ledger.StatusClosed); err == nil {
		t.Fatal("SetDayStatus() error = nil, want error")
	}
}
