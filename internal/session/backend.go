package session

import (
	"context"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
)

// Capabilities advertises which optional mutations a backend supports.
type Capabilities struct {
	Edit   bool
	Delete bool
}

// Backend is the durable side of a session. FetchDayStatuses returns an empty
// slice when there is no active day; errors always mean the fetch failed.
type Backend interface {
	Capabilities() Capabilities
	FetchTransactions(ctx context.Context, driverID string) ([]ledger.Row, error)
	FetchDayStatuses(ctx context.Context, driverID string) ([]ledger.DayStatus, error)
	PersistTransaction(ctx context.Context, driverID string, d ledger.Draft) (ledger.Transaction, error)
	SetDayStatus(ctx context.Context, driverID, dayID string, status ledger.Status) (ledger.DayStatus, error)
	UpdateTransaction(ctx context.Context, driverID string, t ledger.Transaction) error
	DeleteTransaction(ctx context.Context, driverID, id string) error
}

// RefreshRecorder keeps per-source refresh bookkeeping.
type RefreshRecorder interface {
	RecordAttempt(ctx context.Context, collection string, at time.Time) error
	RecordSuccess(ctx context.Context, collection string, at time.Time) error
	RecordError(ctx context.Context, collection string, at time.Time, err error) error
}
