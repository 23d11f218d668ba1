// Package session owns one driver's reconciled ledgers and serializes every
// mutation against them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lachiem1/driverlog/internal/events"
	"github.com/lachiem1/driverlog/internal/ledger"
)

// PendingPrefix marks transactions that are shown but not yet stored.
const PendingPrefix = "pending-"

type Options struct {
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
	Publisher events.Publisher
	Recorder  RefreshRecorder
}

type Session struct {
	backend   Backend
	driverID  string
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
	publisher events.Publisher
	recorder  RefreshRecorder

	// opMu serializes mutations and refreshes. mu guards the fields below
	// and is never held across a backend call.
	opMu sync.Mutex

	mu       sync.RWMutex
	rows     []ledger.Row
	statuses []ledger.DayStatus
	result   ledger.Result
	selected string
	overlay  overlay
}

func New(backend Backend, driverID string, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Session{
		backend:   backend,
		driverID:  driverID,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    opts.Logger.With("driver_id", driverID),
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		overlay:   newOverlay(),
	}
}

func (s *Session) DriverID() string {
	return s.driverID
}

func (s *Session) Location() *time.Location {
	return s.loc
}

func (s *Session) Capabilities() Capabilities {
	return s.backend.Capabilities()
}

// Today is the day id whose shift window contains the current time.
func (s *Session) Today() string {
	return ledger.ShiftDayOf(s.now(), s.loc)
}

// Refresh re-fetches both sources and reconciles. A source that fails keeps
// its previous snapshot; the returned error joins every source failure.
func (s *Session) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	snap := s.fetchSnapshot(ctx)

	s.mu.Lock()
	if snap.rowsErr == nil {
		s.rows = snap.rows
	}
	if snap.statusesErr == nil {
		s.statuses = snap.statuses
	}
	res := s.rebuildLocked()
	s.mu.Unlock()

	for _, d := range res.Dropped {
		s.logger.Warn("dropped degraded row", "id", d.ID, "reason", d.Reason)
	}
	if len(res.OpenViolation) > 0 {
		s.logger.Warn("more than one open day", "days", res.OpenViolation)
	}
	return snap.err()
}

// refreshAfterWrite reconciles after a successful write. Its failure is
// logged only; the cached state already reflects the write.
func (s *Session) refreshAfterWrite(ctx context.Context) {
	if err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn("refresh after write failed", "err", err)
	}
}

func (s *Session) rebuildLocked() ledger.Result {
	s.result = ledger.Reconcile(s.driverID, s.overlay.apply(s.rows), s.statuses, s.loc)
	if s.selected != "" && !s.result.Has(s.selected) {
		s.logger.Info("selected day no longer present", "day_id", s.selected)
		s.selected = ""
	}
	return s.result
}

func (s *Session) Ledgers() []ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.CloneLedgers(s.result.Ledgers)
}

func (s *Session) Ledger(dayID string) (ledger.Ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.result.Find(dayID)
	if !ok {
		return ledger.Ledger{}, false
	}
	return l.Clone(), true
}

// Current returns the selected ledger, including any optimistic rows.
func (s *Session) Current() (ledger.Ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return ledger.Ledger{}, false
	}
	l, ok := s.result.Find(s.selected)
	if !ok {
		return ledger.Ledger{}, false
	}
	return l.Clone(), true
}

func (s *Session) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Session) Select(dayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.result.Has(dayID) {
		return fmt.Errorf("%w: day %s", ledger.ErrNotFound, dayID)
	}
	s.selected = dayID
	return nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
}

// OpenViolation lists open days when the authority reports more than one.
func (s *Session) OpenViolation() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.result.OpenViolation...)
}

func (s *Session) Reminder() (ledger.Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.ReminderFor(s.result.Ledgers, s.now(), s.loc)
}

// OpenDay opens today's ledger and selects it. Opening a day that is already
// open is a no-op; a conflict with another open day re-reconciles so the
// real open day becomes visible.
func (s *Session) OpenDay(ctx context.Context) (ledger.Ledger, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	today := ledger.ShiftDayOf(s.now(), s.loc)
	status, err := s.backend.SetDayStatus(ctx, s.driverID, today, ledger.StatusOpen)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyOpen) {
			if rerr := s.refreshLocked(ctx); rerr != nil {
				s.logger.Warn("refresh after open conflict failed", "err", rerr)
			}
		}
		return ledger.Ledger{}, fmt.Errorf("open day %s: %w", today, err)
	}
	if status.DayID == "" {
		status.DayID = today
	}
	status.Status = ledger.StatusOpen

	s.mu.Lock()
	s.mergeStatusLocked(status)
	s.rebuildLocked()
	s.selected = status.DayID
	s.mu.Unlock()

	s.publish(ctx, events.Event{Kind: events.DayOpened, DayID: status.DayID})
	s.refreshAfterWrite(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Has(status.DayID) {
		s.selected = status.DayID
	}
	l, _ := s.result.Find(status.DayID)
	return l.Clone(), nil
}

func (s *Session) mergeStatusLocked(status ledger.DayStatus) {
	next := make([]ledger.DayStatus, 0, len(s.statuses)+1)
	replaced := false
	for _, st := range s.statuses {
		if st.DayID == status.DayID {
			next = append(next, status)
			replaced = true
			continue
		}
		next = append(next, st)
	}
	if !replaced {
		next = append(next, status)
	}
	s.statuses = next
}

// writableLocked reports whether l accepts transaction changes at now.
func (s *Session) writableLocked(l ledger.Ledger, now time.Time) error {
	if !l.IsOpen() {
		return fmt.Errorf("%w: day %s is closed", ledger.ErrClosedLedger, l.ID)
	}
	w, err := ledger.ShiftWindow(l.ID, s.loc)
	if err != nil {
		return err
	}
	if !w.Contains(now) {
		return fmt.Errorf("%w: shift window for %s has ended", ledger.ErrClosedLedger, l.ID)
	}
	return nil
}

// AddTransaction records a transaction on the selected ledger. The row is
// visible through Current while the write is in flight and is retracted if
// the write fails.
func (s *Session) AddTransaction(ctx context.Context, clientName string, amount decimal.Decimal, kind ledger.Kind) (ledger.Transaction, error) {
	name, err := ledger.ValidateEntry(clientName, amount, kind)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	now := s.now()
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return ledger.Transaction{}, ledger.ErrNoSelection
	}
	l, ok := s.result.Find(s.selected)
	if !ok {
		s.mu.Unlock()
		return ledger.Transaction{}, ledger.ErrNoSelection
	}
	if err := s.writableLocked(l, now); err != nil {
		s.mu.Unlock()
		return ledger.Transaction{}, err
	}

	draft := ledger.Draft{ClientName: name, Amount: amount, Kind: kind, OccurredAt: now}
	pendingID := PendingPrefix + uuid.NewString()
	s.overlay.upserts[pendingID] = ledger.Row{
		ID:         pendingID,
		DriverID:   s.driverID,
		ClientName: name,
		Amount:     amount,
		Kind:       kind,
		OccurredAt: now,
	}
	s.rebuildLocked()
	s.mu.Unlock()

	stored, err := s.backend.PersistTransaction(ctx, s.driverID, draft)

	s.mu.Lock()
	delete(s.overlay.upserts, pendingID)
	if err != nil {
		s.rebuildLocked()
		s.mu.Unlock()
		s.publish(ctx, events.Event{
			Kind:          events.TransactionRetracted,
			DayID:         l.ID,
			TransactionID: pendingID,
			Reason:        err.Error(),
			Amount:        amount.String(),
		})
		return ledger.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	// Keep the stored row visible even if the follow-up refresh fails.
	s.rows = append(s.rows[:len(s.rows):len(s.rows)], ledger.Row{
		ID:         stored.ID,
		DriverID:   s.driverID,
		ClientName: stored.ClientName,
		Amount:     stored.Amount,
		Kind:       stored.Kind,
		OccurredAt: stored.OccurredAt,
	})
	s.rebuildLocked()
	s.mu.Unlock()

	s.publish(ctx, events.Event{
		Kind:          events.TransactionAdded,
		DayID:         l.ID,
		TransactionID: stored.ID,
		Amount:        stored.Amount.String(),
	})
	s.refreshAfterWrite(ctx)
	return stored, nil
}

// ownerLocked finds the ledger holding transaction id.
func (s *Session) ownerLocked(id string) (ledger.Ledger, ledger.Transaction, error) {
	for _, l := range s.result.Ledgers {
		if tx, ok := l.Find(id); ok {
			return l, tx, nil
		}
	}
	return ledger.Ledger{}, ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
}

func (s *Session) EditTransaction(ctx context.Context, id, clientName string, amount decimal.Decimal, kind ledger.Kind) (ledger.Transaction, error) {
	if !s.backend.Capabilities().Edit {
		return ledger.Transaction{}, fmt.Errorf("%w: backend cannot edit transactions", ledger.ErrUnsupported)
	}
	name, err := ledger.ValidateEntry(clientName, amount, kind)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	owner, orig, err := s.ownerLocked(id)
	if err == nil {
		err = s.writableLocked(owner, s.now())
	}
	if err != nil {
		s.mu.Unlock()
		return ledger.Transaction{}, err
	}

	updated := orig
	updated.ClientName = name
	updated.Amount = amount
	updated.Kind = kind
	s.overlay.upserts[id] = ledger.Row{
		ID:         id,
		DriverID:   s.driverID,
		ClientName: name,
		Amount:     amount,
		Kind:       kind,
		OccurredAt: orig.OccurredAt,
	}
	s.rebuildLocked()
	s.mu.Unlock()

	err = s.backend.UpdateTransaction(ctx, s.driverID, updated)

	s.mu.Lock()
	delete(s.overlay.upserts, id)
	if err != nil {
		s.rebuildLocked()
		s.mu.Unlock()
		s.publish(ctx, events.Event{Kind: events.TransactionRetracted, DayID: owner.ID, TransactionID: id, Reason: err.Error()})
		return ledger.Transaction{}, fmt.Errorf("edit transaction %s: %w", id, err)
	}
	s.rows = replaceRow(s.rows, id, func(r ledger.Row) (ledger.Row, bool) {
		r.ClientName, r.Amount, r.Kind = name, amount, kind
		return r, true
	})
	s.rebuildLocked()
	s.mu.Unlock()

	s.publish(ctx, events.Event{Kind: events.TransactionUpdated, DayID: owner.ID, TransactionID: id, Amount: amount.String()})
	s.refreshAfterWrite(ctx)
	return updated, nil
}

func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	if !s.backend.Capabilities().Delete {
		return fmt.Errorf("%w: backend cannot delete transactions", ledger.ErrUnsupported)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	owner, _, err := s.ownerLocked(id)
	if err == nil {
		err = s.writableLocked(owner, s.now())
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.overlay.hidden[id] = true
	s.rebuildLocked()
	s.mu.Unlock()

	err = s.backend.DeleteTransaction(ctx, s.driverID, id)

	s.mu.Lock()
	delete(s.overlay.hidden, id)
	if err != nil {
		s.rebuildLocked()
		s.mu.Unlock()
		s.publish(ctx, events.Event{Kind: events.TransactionRetracted, DayID: owner.ID, TransactionID: id, Reason: err.Error()})
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.rows = replaceRow(s.rows, id, func(r ledger.Row) (ledger.Row, bool) {
		return r, false
	})
	s.rebuildLocked()
	s.mu.Unlock()

	s.publish(ctx, events.Event{Kind: events.TransactionDeleted, DayID: owner.ID, TransactionID: id})
	s.refreshAfterWrite(ctx)
	return nil
}

// CloseDay closes the selected ledger.
func (s *Session) CloseDay(ctx context.Context) (bool, error) {
	dayID := s.Selected()
	if dayID == "" {
		return false, ledger.ErrNoSelection
	}
	return s.CloseDayByID(ctx, dayID, ledger.CloseManual)
}

// CloseDayByID moves an OPEN ledger to CLOSED. It returns false without
// touching the backend when the ledger is already closed.
func (s *Session) CloseDayByID(ctx context.Context, dayID string, reason ledger.CloseReason) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	l, ok := s.result.Find(dayID)
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: day %s", ledger.ErrNotFound, dayID)
	}
	if !l.IsOpen() {
		return false, nil
	}

	status, err := s.backend.SetDayStatus(ctx, s.driverID, dayID, ledger.StatusClosed)
	if err != nil {
		// Someone else may have closed it. If the backend now says so, the close is a no-op.
		if s.refreshLocked(ctx) == nil {
			s.mu.RLock()
			current, found := s.result.Find(dayID)
			s.mu.RUnlock()
			if !found || !current.IsOpen() {
				return false, nil
			}
		}
		return false, fmt.Errorf("close day %s: %w", dayID, err)
	}
	now := s.now()
	if status.DayID == "" {
		status.DayID = dayID
	}
	status.Status = ledger.StatusClosed
	if status.ClosedAt == nil {
		status.ClosedAt = &now
	}
	if status.OpenedAt == nil {
		status.OpenedAt = l.OpenedAt
	}

	s.mu.Lock()
	s.mergeStatusLocked(status)
	s.rebuildLocked()
	s.mu.Unlock()

	s.publish(ctx, events.Event{Kind: events.DayClosed, DayID: dayID, Reason: string(reason)})
	s.refreshAfterWrite(ctx)
	return true, nil
}

func (s *Session) publish(ctx context.Context, e events.Event) {
	e.DriverID = s.driverID
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", "kind", e.Kind, "err", err)
	}
}

// replaceRow returns a copy of rows with id rewritten by fn; fn returning
// false removes the row.
func replaceRow(rows []ledger.Row, id string, fn func(ledger.Row) (ledger.Row, bool)) []ledger.Row {
	out := make([]ledger.Row, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
			continue
		}
		if next, keep := fn(r); keep {
			out = append(out, next)
		}
	}
	return out
}

// IsPending reports whether id belongs to a row still awaiting its write.
func IsPending(id string) bool {
	return strings.HasPrefix(id, PendingPrefix)
}
