package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
)

// Backend serves a session from the remote driver API. The API has no edit or
// delete endpoints and only reports the current day's status.
type Backend struct {
	client *Client
	loc    *time.Location
}

var _ session.Backend = (*Backend)(nil)

func NewBackend(client *Client, loc *time.Location) *Backend {
	if loc == nil {
		loc = time.Local
	}
	return &Backend{client: client, loc: loc}
}

func (b *Backend) Capabilities() session.Capabilities {
	return session.Capabilities{}
}

func (b *Backend) FetchTransactions(ctx context.Context, driverID string) ([]ledger.Row, error) {
	txs, err := b.client.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ledger.Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, toRow(driverID, tx))
	}
	return rows, nil
}

func (b *Backend) FetchDayStatuses(ctx context.Context, driverID string) ([]ledger.DayStatus, error) {
	day, ok, err := b.client.CurrentDay(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ledger.DayStatus{}, nil
	}
	status, err := b.toDayStatus(day)
	if err != nil {
		return nil, err
	}
	return []ledger.DayStatus{status}, nil
}

func (b *Backend) PersistTransaction(ctx context.Context, driverID string, d ledger.Draft) (ledger.Transaction, error) {
	created, err := b.client.CreateTransaction(ctx, CreateTransactionRequest{
		Amount:      json.Number(d.Amount.String()),
		Type:        strings.ToLower(string(d.Kind)),
		Description: d.ClientName,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	row := toRow(driverID, created)
	if row.ID == "" {
		return ledger.Transaction{}, fmt.Errorf("create transaction: response did not include an id")
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = d.OccurredAt
	}
	if row.Kind == "" {
		row.Kind = d.Kind
	}
	return row.Transaction(), nil
}

// SetDayStatus opens or closes the server's current day. The server decides
// which day that is, so an open that lands on a different day is a conflict.
func (b *Backend) SetDayStatus(ctx context.Context, driverID, dayID string, status ledger.Status) (ledger.DayStatus, error) {
	switch status {
	case ledger.StatusOpen:
		return b.openDay(ctx, dayID)
	case ledger.StatusClosed:
		return b.closeDay(ctx, dayID)
	default:
		return ledger.DayStatus{}, fmt.Errorf("%w: unknown day status %q", ledger.ErrValidation, status)
	}
}

func (b *Backend) openDay(ctx context.Context, dayID string) (ledger.DayStatus, error) {
	day, err := b.client.OpenDay(ctx)
	if errors.Is(err, ledger.ErrAlreadyOpen) {
		// Reopening today is idempotent; anything else is a real conflict.
		current, ok, cerr := b.client.CurrentDay(ctx)
		if cerr != nil || !ok {
			return ledger.DayStatus{}, err
		}
		st, serr := b.toDayStatus(current)
		if serr != nil || st.DayID != dayID || st.Status != ledger.StatusOpen {
			return ledger.DayStatus{}, err
		}
		return st, nil
	}
	if err != nil {
		return ledger.DayStatus{}, err
	}
	out, err := b.toDayStatus(day)
	if err != nil {
		return ledger.DayStatus{}, err
	}
	if out.DayID != dayID {
		return ledger.DayStatus{}, fmt.Errorf("%w: server opened day %s, expected %s", ledger.ErrAlreadyOpen, out.DayID, dayID)
	}
	return out, nil
}

// closeDay treats a 404 or 409 as already closed when the server no longer
// reports dayID as its open day.
func (b *Backend) closeDay(ctx context.Context, dayID string) (ledger.DayStatus, error) {
	day, err := b.client.CloseDay(ctx)
	if err == nil {
		return b.toDayStatus(day)
	}
	if !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrAlreadyOpen) {
		return ledger.DayStatus{}, err
	}
	current, ok, cerr := b.client.CurrentDay(ctx)
	if cerr != nil {
		return ledger.DayStatus{}, err
	}
	closed := ledger.DayStatus{DayID: dayID, Status: ledger.StatusClosed}
	if !ok {
		return closed, nil
	}
	st, serr := b.toDayStatus(current)
	if serr != nil || st.Status != ledger.StatusClosed {
		return ledger.DayStatus{}, err
	}
	if st.DayID == dayID {
		return st, nil
	}
	return closed, nil
}

func (b *Backend) UpdateTransaction(context.Context, string, ledger.Transaction) error {
	return fmt.Errorf("%w: remote api cannot edit transactions", ledger.ErrUnsupported)
}

func (b *Backend) DeleteTransaction(context.Context, string, string) error {
	return fmt.Errorf("%w: remote api cannot delete transactions", ledger.ErrUnsupported)
}

func toRow(driverID string, tx Transaction) ledger.Row {
	// Unknown types stay empty so reconciliation drops the row.
	kind, _ := ledger.ParseKind(tx.Type)
	row := ledger.Row{
		ID:         tx.ID.String(),
		DriverID:   driverID,
		ClientName: strings.TrimSpace(tx.Description),
		Amount:     tx.Amount.Value,
		Kind:       kind,
		OccurredAt: parseInstant(tx.Timestamp),
	}
	if !tx.Amount.Valid {
		row.Invalid = "malformed amount"
	}
	return row
}

// toDayStatus keys the day by the shift day of opened_at so it matches how
// transactions are bucketed. The server's calendar date is the fallback.
func (b *Backend) toDayStatus(day Day) (ledger.DayStatus, error) {
	status, ok := ledger.ParseStatus(day.Status)
	if !ok {
		return ledger.DayStatus{}, fmt.Errorf("unknown day status %q from api", day.Status)
	}
	out := ledger.DayStatus{Status: status}

	if opened := parseInstant(day.OpenedAt); !opened.IsZero() {
		out.OpenedAt = &opened
		out.DayID = ledger.ShiftDayOf(opened, b.loc)
	} else if len(day.Date) >= 10 {
		out.DayID = day.Date[:10]
	}
	if _, err := ledger.ParseDayID(out.DayID, b.loc); err != nil {
		return ledger.DayStatus{}, fmt.Errorf("day %s from api: %w", day.ID, err)
	}
	if day.ClosedAt != nil {
		if closed := parseInstant(*day.ClosedAt); !closed.IsZero() {
			out.ClosedAt = &closed
		}
	}
	return out, nil
}
