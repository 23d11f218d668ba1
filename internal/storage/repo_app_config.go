package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type AppConfigRepo struct {
	store *Store
}

func NewAppConfigRepo(store *Store) *AppConfigRepo {
	return &AppConfigRepo{store: store}
}

func (r *AppConfigRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.store.db.QueryRowContext(ctx, r.store.rebind("SELECT value FROM app_config WHERE key = ?"), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get app config %q: %w", key, err)
	}
	return value, true, nil
}

func (r *AppConfigRepo) UpsertMany(ctx context.Context, values map[string]string) (err error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin app config upsert transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := formatTS(time.Now())
	q := r.store.rebind(`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
	 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	for key, value := range values {
		if _, err = tx.ExecContext(ctx, q, key, value, now); err != nil {
			return fmt.Errorf("upsert app config %q: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit app config upsert transaction: %w", err)
	}
	return nil
}

func (r *AppConfigRepo) Delete(ctx context.Context, keys ...string) error {
	q := r.store.rebind("DELETE FROM app_config WHERE key = ?")
	for _, key := range keys {
		if _, err := r.store.db.ExecContext(ctx, q, key); err != nil {
			return fmt.Errorf("delete app config %q: %w", key, err)
		}
	}
	return nil
}
