package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
)

const (
	CollectionTransactions = "transactions"
	CollectionDays         = "days"
)

// runRefreshAttempt wraps one source fetch with refresh bookkeeping.
func runRefreshAttempt[T any](
	ctx context.Context,
	recorder RefreshRecorder,
	now func() time.Time,
	collection string,
	fetch func(context.Context) (T, error),
) (T, error) {
	if recorder == nil {
		return fetch(ctx)
	}
	if err := recorder.RecordAttempt(ctx, collection, now().UTC()); err != nil {
		var zero T
		return zero, err
	}

	v, err := fetch(ctx)
	if err != nil {
		_ = recorder.RecordError(context.Background(), collection, now().UTC(), err)
		return v, err
	}
	if err := recorder.RecordSuccess(ctx, collection, now().UTC()); err != nil {
		return v, err
	}
	return v, nil
}

type snapshot struct {
	rows        []ledger.Row
	rowsErr     error
	statuses    []ledger.DayStatus
	statusesErr error
}

// fetchSnapshot loads both sources in parallel. Each source succeeds or fails
// on its own; one failing does not cancel the other.
func (s *Session) fetchSnapshot(ctx context.Context) snapshot {
	var (
		out snapshot
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.rows, out.rowsErr = runRefreshAttempt(ctx, s.recorder, s.now, CollectionTransactions,
			func(ctx context.Context) ([]ledger.Row, error) {
				return s.backend.FetchTransactions(ctx, s.driverID)
			})
		if out.rowsErr != nil {
			out.rowsErr = fmt.Errorf("fetch transactions: %w", out.rowsErr)
		}
	}()
	go func() {
		defer wg.Done()
		out.statuses, out.statusesErr = runRefreshAttempt(ctx, s.recorder, s.now, CollectionDays,
			func(ctx context.Context) ([]ledger.DayStatus, error) {
				return s.backend.FetchDayStatuses(ctx, s.driverID)
			})
		if out.statusesErr != nil {
			out.statusesErr = fmt.Errorf("fetch day statuses: %w", out.statusesErr)
		}
	}()
	wg.Wait()
	return out
}

func (snap snapshot) err() error {
	return errors.Join(snap.rowsErr, snap.statusesErr)
}
