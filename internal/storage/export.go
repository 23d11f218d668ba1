package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lachiem1/driverlog/internal/ledger"
)

const snapshotVersion = 1

// Snapshot is the portable form of one driver's full history.
type Snapshot struct {
	Version      int                   `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	Driver       ledger.Driver         `json:"driver"`
	Days         []SnapshotDay         `json:"days"`
	Transactions []SnapshotTransaction `json:"transactions"`
}

type SnapshotDay struct {
	DayID    string        `json:"day_id"`
	Status   ledger.Status `json:"status"`
	OpenedAt *time.Time    `json:"opened_at,omitempty"`
	ClosedAt *time.Time    `json:"closed_at,omitempty"`
}

type SnapshotTransaction struct {
	ID         string          `json:"id"`
	ClientName string          `json:"client_name"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       ledger.Kind     `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type ImportStats struct {
	Days         int
	Transactions int
	Skipped      int
}

func (b *LedgerBackend) Export(ctx context.Context, driverID string, w io.Writer) error {
	driver, ok, err := NewDriversRepo(b.store).Get(ctx, driverID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: driver %s", ledger.ErrNotFound, driverID)
	}
	days, err := b.days.List(ctx, driverID)
	if err != nil {
		return err
	}
	rows, err := b.transactions.ListActive(ctx, driverID)
	if err != nil {
		return err
	}

	snap := Snapshot{
		Version:      snapshotVersion,
		ExportedAt:   b.now().UTC(),
		Driver:       driver,
		Days:         make([]SnapshotDay, 0, len(days)),
		Transactions: make([]SnapshotTransaction, 0, len(rows)),
	}
	for _, d := range days {
		snap.Days = append(snap.Days, SnapshotDay(d))
	}
	for _, r := range rows {
		snap.Transactions = append(snap.Transactions, SnapshotTransaction{
			ID:         r.ID,
			ClientName: r.ClientName,
			Amount:     r.Amount,
			Kind:       r.Kind,
			OccurredAt: r.OccurredAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Import loads a snapshot in one transaction. Existing days and transaction
// ids are left alone; any failure leaves the database untouched.
func (b *LedgerBackend) Import(ctx context.Context, r io.Reader) (stats ImportStats, err error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return ImportStats{}, fmt.Errorf("%w: decode snapshot: %v", ledger.ErrValidation, err)
	}
	if snap.Version != snapshotVersion {
		return ImportStats{}, fmt.Errorf("%w: unsupported snapshot version %d", ledger.ErrValidation, snap.Version)
	}
	for _, t := range snap.Transactions {
		if _, err := ledger.ValidateEntry(t.ClientName, t.Amount, t.Kind); err != nil {
			return ImportStats{}, fmt.Errorf("transaction %q: %w", t.ID, err)
		}
		if t.ID == "" || t.OccurredAt.IsZero() {
			return ImportStats{}, fmt.Errorf("%w: transaction %q is missing id or time", ledger.ErrValidation, t.ID)
		}
	}
	for _, d := range snap.Days {
		if _, ok := ledger.ParseStatus(string(d.Status)); !ok {
			return ImportStats{}, fmt.Errorf("%w: day %q has unknown status %q", ledger.ErrValidation, d.DayID, d.Status)
		}
		if _, err := ledger.ParseDayID(d.DayID, time.UTC); err != nil {
			return ImportStats{}, err
		}
	}

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportStats{}, fmt.Errorf("begin import transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := b.now()
	if err = upsertDriver(ctx, b.store, tx, snap.Driver, now); err != nil {
		return ImportStats{}, err
	}
	driverID := snap.Driver.ID

	insertDay := b.store.rebind(`
INSERT INTO days (driver_id, day_id, status, opened_at, closed_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (driver_id, day_id) DO NOTHING
`)
	for _, d := range snap.Days {
		status, _ := ledger.ParseStatus(string(d.Status))
		res, execErr := tx.ExecContext(ctx, insertDay, driverID, d.DayID, string(status), nullableTS(d.OpenedAt), nullableTS(d.ClosedAt))
		if execErr != nil {
			if isUniqueViolation(execErr) {
				err = fmt.Errorf("%w: import day %s: %v", ledger.ErrAlreadyOpen, d.DayID, execErr)
				return ImportStats{}, err
			}
			err = fmt.Errorf("import day %q: %w", d.DayID, execErr)
			return ImportStats{}, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.Days++
		} else {
			stats.Skipped++
		}
	}

	for _, t := range snap.Transactions {
		inserted, insertErr := insertTransaction(ctx, b.store, tx, ledger.Row{
			ID:         t.ID,
			DriverID:   driverID,
			ClientName: t.ClientName,
			Amount:     t.Amount,
			Kind:       t.Kind,
			OccurredAt: t.OccurredAt,
		}, now)
		if insertErr != nil {
			err = insertErr
			return ImportStats{}, err
		}
		if inserted {
			stats.Transactions++
		} else {
			stats.Skipped++
		}
	}

	if err = tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("commit import transaction: %w", err)
	}
	return stats, nil
}
