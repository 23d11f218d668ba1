package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lachiem1/driverlog/internal/ledger"
)

type TransactionsRepo struct {
	store *Store
}

func NewTransactionsRepo(store *Store) *TransactionsRepo {
	return &TransactionsRepo{store: store}
}

// KnownIDs reports which of ids already exist, active or not.
func (r *TransactionsRepo) KnownIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return knownTransactionIDs(ctx, r.store, r.store.db, ids)
}

func knownTransactionIDs(ctx context.Context, s *Store, q querier, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM transactions WHERE id IN (%s)", strings.Join(placeholders, ","))
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query known transaction ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan known transaction id: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known transaction ids: %w", err)
	}
	return out, nil
}

func (r *TransactionsRepo) Insert(ctx context.Context, row ledger.Row, at time.Time) error {
	_, err := insertTransaction(ctx, r.store, r.store.db, row, at)
	return err
}

// insertTransaction skips ids that already exist and reports whether a row was written.
func insertTransaction(ctx context.Context, s *Store, q querier, row ledger.Row, at time.Time) (bool, error) {
	now := formatTS(at)
	res, err := q.ExecContext(ctx, s.rebind(`
INSERT INTO transactions (
  id, driver_id, client_name, client_name_norm, amount_value, kind,
  occurred_at, created_at, updated_at, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(id) DO NOTHING
`),
		row.ID,
		row.DriverID,
		normalizeClientText(row.ClientName),
		normalizeClientKey(row.ClientName),
		row.Amount.String(),
		string(row.Kind),
		formatTS(row.OccurredAt),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction %q: %w", row.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert transaction %q: %w", row.ID, err)
	}
	return n > 0, nil
}

// ListActive returns the driver's live rows. Unparseable timestamps come back
// as zero times and unparseable amounts are marked Invalid, so reconciliation
// drops them instead of failing the fetch.
func (r *TransactionsRepo) ListActive(ctx context.Context, driverID string) ([]ledger.Row, error) {
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
SELECT id, driver_id, client_name, amount_value, kind, occurred_at
FROM transactions
WHERE driver_id = ? AND is_active = 1
ORDER BY occurred_at DESC, id
`), driverID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Row
	for rows.Next() {
		var (
			row      ledger.Row
			amount   string
			kind     string
			occurred string
		)
		if err := rows.Scan(&row.ID, &row.DriverID, &row.ClientName, &amount, &kind, &occurred); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			row.Invalid = "malformed amount"
		}
		row.Kind = ledger.Kind(kind)
		if t, err := parseTS(occurred); err == nil {
			row.OccurredAt = t
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Update rewrites the editable fields. occurredAt never changes, so the row stays in its day.
func (r *TransactionsRepo) Update(ctx context.Context, driverID string, t ledger.Transaction, at time.Time) error {
	res, err := r.store.db.ExecContext(ctx, r.store.rebind(`
UPDATE transactions
SET client_name = ?, client_name_norm = ?, amount_value = ?, kind = ?, updated_at = ?
WHERE id = ? AND driver_id = ? AND is_active = 1
`),
		normalizeClientText(t.ClientName),
		normalizeClientKey(t.ClientName),
		t.Amount.String(),
		string(t.Kind),
		formatTS(at),
		t.ID,
		driverID,
	)
	if err != nil {
		return fmt.Errorf("update transaction %q: %w", t.ID, err)
	}
	return requireAffected(res, t.ID)
}

// Deactivate soft-deletes a row.
func (r *TransactionsRepo) Deactivate(ctx context.Context, driverID, id string, at time.Time) error {
	res, err := r.store.db.ExecContext(
		ctx,
		r.store.rebind("UPDATE transactions SET is_active = 0, updated_at = ? WHERE id = ? AND driver_id = ? AND is_active = 1"),
		formatTS(at), id, driverID,
	)
	if err != nil {
		return fmt.Errorf("deactivate transaction %q: %w", id, err)
	}
	return requireAffected(res, id)
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction %q rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}
	return nil
}

// ClientNames lists distinct client names starting with prefix, most recent first.
func (r *TransactionsRepo) ClientNames(ctx context.Context, driverID, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	key := normalizeClientKey(prefix)
	key = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(key)
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
SELECT client_name, MAX(occurred_at) AS last_seen
FROM transactions
WHERE driver_id = ? AND is_active = 1 AND client_name_norm LIKE ? ESCAPE '\'
GROUP BY client_name_norm, client_name
ORDER BY last_seen DESC
LIMIT ?
`), driverID, key+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("query client names: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []string
	for rows.Next() {
		var name, lastSeen string
		if err := rows.Scan(&name, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan client name: %w", err)
		}
		k := normalizeClientKey(name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client names: %w", err)
	}
	return out, nil
}
