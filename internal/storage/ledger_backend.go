package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
)

// LedgerBackend serves a session from the local database.
type LedgerBackend struct {
	store        *Store
	days         *DaysRepo
	transactions *TransactionsRepo
	now          func() time.Time
	newID        func() string
}

var _ session.Backend = (*LedgerBackend)(nil)

func NewLedgerBackend(store *Store) *LedgerBackend {
	return &LedgerBackend{
		store:        store,
		days:         NewDaysRepo(store),
		transactions: NewTransactionsRepo(store),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (b *LedgerBackend) Capabilities() session.Capabilities {
	return session.Capabilities{Edit: true, Delete: true}
}

func (b *LedgerBackend) FetchTransactions(ctx context.Context, driverID string) ([]ledger.Row, error) {
	return b.transactions.ListActive(ctx, driverID)
}

func (b *LedgerBackend) FetchDayStatuses(ctx context.Context, driverID string) ([]ledger.DayStatus, error) {
	return b.days.List(ctx, driverID)
}

func (b *LedgerBackend) PersistTransaction(ctx context.Context, driverID string, d ledger.Draft) (ledger.Transaction, error) {
	row := ledger.Row{
		ID:         b.newID(),
		DriverID:   driverID,
		ClientName: normalizeClientText(d.ClientName),
		Amount:     d.Amount,
		Kind:       d.Kind,
		OccurredAt: d.OccurredAt.UTC(),
	}
	if err := b.transactions.Insert(ctx, row, b.now()); err != nil {
		return ledger.Transaction{}, err
	}
	return row.Transaction(), nil
}

func (b *LedgerBackend) SetDayStatus(ctx context.Context, driverID, dayID string, status ledger.Status) (ledger.DayStatus, error) {
	switch status {
	case ledger.StatusOpen:
		return b.days.Open(ctx, driverID, dayID, b.now())
	case ledger.StatusClosed:
		return b.days.Close(ctx, driverID, dayID, b.now())
	default:
		return ledger.DayStatus{}, fmt.Errorf("%w: unknown day status %q", ledger.ErrValidation, status)
	}
}

func (b *LedgerBackend) UpdateTransaction(ctx context.Context, driverID string, t ledger.Transaction) error {
	return b.transactions.Update(ctx, driverID, t, b.now())
}

func (b *LedgerBackend) DeleteTransaction(ctx context.Context, driverID, id string) error {
	return b.transactions.Deactivate(ctx, driverID, id, b.now())
}
