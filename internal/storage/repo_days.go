package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
)

// DaysRepo persists day status records. The store allows one OPEN day per driver.
type DaysRepo struct {
	store *Store
}

func NewDaysRepo(store *Store) *DaysRepo {
	return &DaysRepo{store: store}
}

const selectDayColumns = "day_id, status, opened_at, closed_at"

func scanDay(scan func(dest ...any) error) (ledger.DayStatus, error) {
	var (
		d        ledger.DayStatus
		status   string
		openedAt sql.NullString
		closedAt sql.NullString
	)
	if err := scan(&d.DayID, &status, &openedAt, &closedAt); err != nil {
		return ledger.DayStatus{}, err
	}
	d.Status = ledger.Status(status)

	var err error
	if d.OpenedAt, err = parseNullTS(openedAt); err != nil {
		return ledger.DayStatus{}, fmt.Errorf("parse opened_at for %q: %w", d.DayID, err)
	}
	if d.ClosedAt, err = parseNullTS(closedAt); err != nil {
		return ledger.DayStatus{}, fmt.Errorf("parse closed_at for %q: %w", d.DayID, err)
	}
	return d, nil
}

func (r *DaysRepo) List(ctx context.Context, driverID string) ([]ledger.DayStatus, error) {
	rows, err := r.store.db.QueryContext(
		ctx,
		r.store.rebind("SELECT "+selectDayColumns+" FROM days WHERE driver_id = ? ORDER BY day_id DESC"),
		driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	var out []ledger.DayStatus
	for rows.Next() {
		d, err := scanDay(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return out, nil
}

func (r *DaysRepo) Get(ctx context.Context, driverID, dayID string) (ledger.DayStatus, bool, error) {
	return getDay(ctx, r.store, r.store.db, driverID, dayID)
}

func getDay(ctx context.Context, s *Store, q querier, driverID, dayID string) (ledger.DayStatus, bool, error) {
	row := q.QueryRowContext(
		ctx,
		s.rebind("SELECT "+selectDayColumns+" FROM days WHERE driver_id = ? AND day_id = ?"),
		driverID, dayID,
	)
	d, err := scanDay(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.DayStatus{}, false, nil
		}
		return ledger.DayStatus{}, false, fmt.Errorf("get day %q: %w", dayID, err)
	}
	return d, true, nil
}

// Open marks dayID OPEN. Reopening an already open day returns it unchanged.
func (r *DaysRepo) Open(ctx context.Context, driverID, dayID string, at time.Time) (_ ledger.DayStatus, err error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.DayStatus{}, fmt.Errorf("begin open day transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, ok, err := getDay(ctx, r.store, tx, driverID, dayID)
	if err != nil {
		return ledger.DayStatus{}, err
	}
	if ok {
		if existing.Status == ledger.StatusClosed {
			return ledger.DayStatus{}, fmt.Errorf("%w: day %s was closed", ledger.ErrClosedLedger, dayID)
		}
		if err = tx.Commit(); err != nil {
			return ledger.DayStatus{}, fmt.Errorf("commit open day transaction: %w", err)
		}
		return existing, nil
	}

	var other string
	err = tx.QueryRowContext(
		ctx,
		r.store.rebind("SELECT day_id FROM days WHERE driver_id = ? AND status = 'OPEN'"),
		driverID,
	).Scan(&other)
	switch {
	case err == nil:
		err = fmt.Errorf("%w: day %s is still open", ledger.ErrAlreadyOpen, other)
		return ledger.DayStatus{}, err
	case !errors.Is(err, sql.ErrNoRows):
		return ledger.DayStatus{}, fmt.Errorf("query open day: %w", err)
	}

	if _, err = tx.ExecContext(
		ctx,
		r.store.rebind("INSERT INTO days (driver_id, day_id, status, opened_at) VALUES (?, ?, 'OPEN', ?)"),
		driverID, dayID, formatTS(at),
	); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %v", ledger.ErrAlreadyOpen, err)
			return ledger.DayStatus{}, err
		}
		return ledger.DayStatus{}, fmt.Errorf("insert day %q: %w", dayID, err)
	}
	if err = tx.Commit(); err != nil {
		return ledger.DayStatus{}, fmt.Errorf("commit open day transaction: %w", err)
	}

	openedAt := at.UTC()
	return ledger.DayStatus{DayID: dayID, Status: ledger.StatusOpen, OpenedAt: &openedAt}, nil
}

// Close moves dayID to CLOSED. Closing a closed day returns it unchanged.
func (r *DaysRepo) Close(ctx context.Context, driverID, dayID string, at time.Time) (ledger.DayStatus, error) {
	res, err := r.store.db.ExecContext(
		ctx,
		r.store.rebind("UPDATE days SET status = 'CLOSED', closed_at = ? WHERE driver_id = ? AND day_id = ? AND status = 'OPEN'"),
		formatTS(at), driverID, dayID,
	)
	if err != nil {
		return ledger.DayStatus{}, fmt.Errorf("close day %q: %w", dayID, err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return ledger.DayStatus{}, fmt.Errorf("close day %q: %w", dayID, err)
	}

	d, ok, err := r.Get(ctx, driverID, dayID)
	if err != nil {
		return ledger.DayStatus{}, err
	}
	if !ok {
		return ledger.DayStatus{}, fmt.Errorf("%w: day %s", ledger.ErrNotFound, dayID)
	}
	return d, nil
}
