package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
)

type DriversRepo struct {
	store *Store
}

func NewDriversRepo(store *Store) *DriversRepo {
	return &DriversRepo{store: store}
}

func (r *DriversRepo) Upsert(ctx context.Context, d ledger.Driver) error {
	return upsertDriver(ctx, r.store, r.store.db, d, time.Now())
}

func upsertDriver(ctx context.Context, s *Store, q querier, d ledger.Driver, at time.Time) error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return fmt.Errorf("%w: driver id is required", ledger.ErrValidation)
	}
	now := formatTS(at)
	_, err := q.ExecContext(ctx, s.rebind(`
INSERT INTO drivers (id, name, mobile, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  mobile = excluded.mobile,
  updated_at = excluded.updated_at
`), id, strings.TrimSpace(d.Name), strings.TrimSpace(d.Mobile), now, now)
	if err != nil {
		return fmt.Errorf("upsert driver %q: %w", id, err)
	}
	return nil
}

func (r *DriversRepo) Get(ctx context.Context, id string) (ledger.Driver, bool, error) {
	var d ledger.Driver
	err := r.store.db.QueryRowContext(
		ctx,
		r.store.rebind("SELECT id, name, mobile FROM drivers WHERE id = ?"),
		id,
	).Scan(&d.ID, &d.Name, &d.Mobile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Driver{}, false, nil
		}
		return ledger.Driver{}, false, fmt.Errorf("get driver %q: %w", id, err)
	}
	return d, true, nil
}
