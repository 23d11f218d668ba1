package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
)

const testDriver = "0500000000"

var testLoc = time.FixedZone("EET", 2*60*60)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "driverlog.db"),
	})
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrateIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driverlog.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := Open(ctx, Config{Driver: DriverSQLite, Path: path})
		if err != nil {
			t.Fatalf("Open() #%d unexpected error: %v", i+1, err)
		}
		var version int
		if err := store.DB().QueryRow("SELECT version FROM schema_migrations WHERE id = 1").Scan(&version); err != nil {
			t.Fatalf("read version: %v", err)
		}
		if version != schemaVersion {
			t.Fatalf("version = %d, want %d", version, schemaVersion)
		}
		store.Close()
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.DB().Exec("UPDATE schema_migrations SET version = 99 WHERE id = 1"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() error = nil, want newer-schema error")
	}
}

func TestDaysRepoEnforcesSingleOpenDay(t *testing.T) {
	store := openTestStore(t)
	days := NewDaysRepo(store)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	opened, err := days.Open(ctx, testDriver, "2024-03-10", at)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if opened.Status != ledger.StatusOpen || opened.OpenedAt == nil {
		t.Fatalf("Open() = %+v, want OPEN with OpenedAt", opened)
	}

	again, err := days.Open(ctx, testDriver, "2024-03-10", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("reopen unexpected error: %v", err)
	}
	if !again.OpenedAt.Equal(at) {
		t.Fatalf("reopen OpenedAt = %v, want original %v", again.OpenedAt, at)
	}

	if _, err := days.Open(ctx, testDriver, "2024-03-11", at); !errors.Is(err, ledger.ErrAlreadyOpen) {
		t.Fatalf("Open(other day) error = %v, want ErrAlreadyOpen", err)
	}
	// Another driver is unaffected.
	if _, err := days.Open(ctx, "0511111111", "2024-03-11", at); err != nil {
		t.Fatalf("Open(other driver) unexpected error: %v", err)
	}

	closed, err := days.Close(ctx, testDriver, "2024-03-10", at.Add(20*time.Hour))
	if err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if closed.Status != ledger.StatusClosed || closed.ClosedAt == nil {
		t.Fatalf("Close() = %+v, want CLOSED with ClosedAt", closed)
	}
	if _, err := days.Close(ctx, testDriver, "2024-03-10", at.Add(30*time.Hour)); err != nil {
		t.Fatalf("second Close() unexpected error: %v", err)
	}
	if _, err := days.Open(ctx, testDriver, "2024-03-10", at); !errors.Is(err, ledger.ErrClosedLedger) {
		t.Fatalf("Open(closed day) error = %v, want ErrClosedLedger", err)
	}
	if _, err := days.Close(ctx, testDriver, "2024-01-01", at); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Close(missing) error = %v, want ErrNotFound", err)
	}

	list, err := days.List(ctx, testDriver)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].DayID != "2024-03-10" {
		t.Fatalf("List() = %+v, want one day", list)
	}
}

func TestTransactionsRepoLifecycle(t *testing.T) {
	store := openTestStore(t)
	repo := NewTransactionsRepo(store)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	row := ledger.Row{
		ID:         "tx-1",
		DriverID:   testDriver,
		ClientName: "  Ali   Hassan ",
		Amount:     decimal.RequireFromString("120.50"),
		Kind:       ledger.KindIncome,
		OccurredAt: now,
	}
	if err := repo.Insert(ctx, row, now); err != nil {
		t.Fatalf("Insert() unexpected error: %v", err)
	}
	rows, err := repo.ListActive(ctx, testDriver)
	if err != nil {
		t.Fatalf("ListActive() unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	got := rows[0]
	if got.ClientName != "Ali Hassan" {
		t.Fatalf("ClientName = %q, want %q", got.ClientName, "Ali Hassan")
	}
	if !got.Amount.Equal(row.Amount) || !got.OccurredAt.Equal(now) || got.Kind != ledger.KindIncome {
		t.Fatalf("row = %+v, want round-tripped values", got)
	}

	edited := got.Transaction()
	edited.Amount = decimal.RequireFromString("99")
	edited.Kind = ledger.KindExpense
	if err := repo.Update(ctx, testDriver, edited, now); err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	rows, _ = repo.ListActive(ctx, testDriver)
	if !rows[0].Amount.Equal(decimal.RequireFromString("99")) || rows[0].Kind != ledger.KindExpense {
		t.Fatalf("after Update() = %+v", rows[0])
	}

	if err := repo.Deactivate(ctx, testDriver, "tx-1", now); err != nil {
		t.Fatalf("Deactivate() unexpected error: %v", err)
	}
	rows, _ = repo.ListActive(ctx, testDriver)
	if len(rows) != 0 {
		t.Fatalf("rows after Deactivate() = %+v, want none", rows)
	}
	if err := repo.Deactivate(ctx, testDriver, "tx-1", now); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("second Deactivate() error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, testDriver, edited, now); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Update(inactive) error = %v, want ErrNotFound", err)
	}

	known, err := repo.KnownIDs(ctx, []string{"tx-1", "tx-2"})
	if err != nil {
		t.Fatalf("KnownIDs() unexpected error: %v", err)
	}
	if !known["tx-1"] || known["tx-2"] {
		t.Fatalf("KnownIDs() = %v, want only tx-1", known)
	}
}

func TestListActiveMarksMalformedAmountInsteadOfFailing(t *testing.T) {
	store := openTestStore(t)
	repo := NewTransactionsRepo(store)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"good-1", "bad-1", "good-2"} {
		row := ledger.Row{
			ID:         id,
			DriverID:   testDriver,
			ClientName: "Client " + id,
			Amount:     decimal.NewFromInt(10),
			Kind:       ledger.KindIncome,
			OccurredAt: now,
		}
		if err := repo.Insert(ctx, row, now); err != nil {
			t.Fatalf("Insert(%q) unexpected error: %v", id, err)
		}
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE transactions SET amount_value = 'abc' WHERE id = 'bad-1'"); err != nil {
		t.Fatalf("corrupt amount: %v", err)
	}

	rows, err := repo.ListActive(ctx, testDriver)
	if err != nil {
		t.Fatalf("ListActive() unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	for _, r := range rows {
		want := ""
		if r.ID == "bad-1" {
			want = "malformed amount"
		}
		if r.Invalid != want {
			t.Fatalf("row %q Invalid = %q, want %q", r.ID, r.Invalid, want)
		}
	}

	// The session keeps the good rows and drops the bad one.
	s := session.New(NewLedgerBackend(store), testDriver, session.Options{
		Location: testLoc,
		Now:      func() time.Time { return now },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() unexpected error: %v", err)
	}
	l, ok := s.Ledger("2024-03-10")
	if !ok || len(l.Transactions) != 2 {
		t.Fatalf("Ledger() = %+v, %v, want two transactions", l, ok)
	}
}

func TestClientNamesMatchesPrefixCaseInsensitively(t *testing.T) {
	store := openTestStore(t)
	repo := NewTransactionsRepo(store)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, name := range []string{"Ali Hassan", "alia", "Bob", "ALI HASSAN", "50%_off"} {
		row := ledger.Row{
			ID: "tx-" + name, DriverID: testDriver, ClientName: name,
			Amount: decimal.NewFromInt(1), Kind: ledger.KindIncome,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, row, base); err != nil {
			t.Fatalf("Insert(%q) unexpected error: %v", name, err)
		}
	}

	got, err := repo.ClientNames(ctx, testDriver, "ali", 10)
	if err != nil {
		t.Fatalf("ClientNames() unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "ALI HASSAN" || got[1] != "alia" {
		t.Fatalf("ClientNames(ali) = %v, want [ALI HASSAN alia]", got)
	}

	got, _ = repo.ClientNames(ctx, testDriver, "50%", 10)
	if len(got) != 1 {
		t.Fatalf("ClientNames(50%%) = %v, want literal match only", got)
	}
}

func TestSyncStateRepoBookkeeping(t *testing.T) {
	store := openTestStore(t)
	repo := NewSyncStateRepo(store)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	if err := repo.RecordAttempt(ctx, "transactions", at); err != nil {
		t.Fatalf("RecordAttempt() unexpected error: %v", err)
	}
	if err := repo.RecordSuccess(ctx, "transactions", at.Add(time.Second)); err != nil {
		t.Fatalf("RecordSuccess() unexpected error: %v", err)
	}
	if err := repo.RecordError(ctx, "transactions", at.Add(time.Minute), errors.New("timeout")); err != nil {
		t.Fatalf("RecordError() unexpected error: %v", err)
	}

	state, ok, err := repo.Get(ctx, "transactions")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if state.LastSuccess == nil || !state.LastSuccess.Equal(at.Add(time.Second)) {
		t.Fatalf("LastSuccess = %v, want preserved success time", state.LastSuccess)
	}
	if state.LastErrorMsg != "timeout" {
		t.Fatalf("LastErrorMsg = %q, want %q", state.LastErrorMsg, "timeout")
	}
}

func TestSessionRepoPointer(t *testing.T) {
	store := openTestStore(t)
	repo := NewSessionRepo(store)
	ctx := context.Background()

	if err := repo.SetDriver(ctx, testDriver); err != nil {
		t.Fatalf("SetDriver() unexpected error: %v", err)
	}
	if err := repo.SetDay(ctx, "2024-03-10"); err != nil {
		t.Fatalf("SetDay() unexpected error: %v", err)
	}
	p, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if p.DriverID != testDriver || p.DayID != "2024-03-10" {
		t.Fatalf("Load() = %+v", p)
	}

	if err := repo.SetDriver(ctx, "0511111111"); err != nil {
		t.Fatalf("SetDriver() unexpected error: %v", err)
	}
	p, _ = repo.Load(ctx)
	if p.DayID != "" {
		t.Fatalf("DayID = %q after switching driver, want empty", p.DayID)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	p, _ = repo.Load(ctx)
	if p != (Pointer{}) {
		t.Fatalf("Load() after Clear() = %+v, want empty", p)
	}
}

func TestLedgerBackendDrivesSession(t *testing.T) {
	store := openTestStore(t)
	backend := NewLedgerBackend(store)
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, testLoc)
	backend.now = func() time.Time { return now }

	s := session.New(backend, testDriver, session.Options{
		Location: testLoc,
		Now:      func() time.Time { return now },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder: NewSyncStateRepo(store),
	})
	ctx := context.Background()

	if _, err := s.OpenDay(ctx); err != nil {
		t.Fatalf("OpenDay() unexpected error: %v", err)
	}
	tx, err := s.AddTransaction(ctx, "Ali", decimal.RequireFromString("50"), ledger.KindIncome)
	if err != nil {
		t.Fatalf("AddTransaction() unexpected error: %v", err)
	}
	if session.IsPending(tx.ID) {
		t.Fatalf("stored id %q is still pending", tx.ID)
	}
	if _, err := s.EditTransaction(ctx, tx.ID, "Ali", decimal.RequireFromString("60"), ledger.KindIncome); err != nil {
		t.Fatalf("EditTransaction() unexpected error: %v", err)
	}

	// A fresh session sees the same authoritative state.
	fresh := session.New(backend, testDriver, session.Options{Location: testLoc, Now: func() time.Time { return now }})
	if err := fresh.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() unexpected error: %v", err)
	}
	l, ok := fresh.Ledger("2024-03-10")
	if !ok || !l.IsOpen() || len(l.Transactions) != 1 || !l.Transactions[0].Amount.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("Ledger() = %+v, %v", l, ok)
	}

	if changed, err := s.CloseDayByID(ctx, "2024-03-10", ledger.CloseManual); err != nil || !changed {
		t.Fatalf("CloseDayByID() = %v, %v", changed, err)
	}
	if _, err := s.OpenDay(ctx); !errors.Is(err, ledger.ErrClosedLedger) {
		t.Fatalf("OpenDay() after close error = %v, want ErrClosedLedger", err)
	}

	state, ok, err := NewSyncStateRepo(store).Get(ctx, session.CollectionDays)
	if err != nil || !ok || state.LastSuccess == nil {
		t.Fatalf("sync state = %+v, %v, %v, want recorded success", state, ok, err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	srcBackend := NewLedgerBackend(src)
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	if err := NewDriversRepo(src).Upsert(ctx, ledger.Driver{ID: testDriver, Name: "Omar", Mobile: testDriver}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if _, err := srcBackend.days.Open(ctx, testDriver, "2024-03-10", at); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	for _, amt := range []string{"10", "20.5"} {
		if _, err := srcBackend.PersistTransaction(ctx, testDriver, ledger.Draft{
			ClientName: "Ali", Amount: decimal.RequireFromString(amt), Kind: ledger.KindIncome, OccurredAt: at,
		}); err != nil {
			t.Fatalf("PersistTransaction() unexpected error: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := srcBackend.Export(ctx, testDriver, &buf); err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	payload := buf.String()

	dst := openTestStore(t)
	dstBackend := NewLedgerBackend(dst)
	stats, err := dstBackend.Import(ctx, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Import() unexpected error: %v", err)
	}
	if stats.Days != 1 || stats.Transactions != 2 || stats.Skipped != 0 {
		t.Fatalf("Import() stats = %+v, want 1 day, 2 transactions", stats)
	}

	stats, err = dstBackend.Import(ctx, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("second Import() unexpected error: %v", err)
	}
	if stats.Skipped != 3 || stats.Transactions != 0 {
		t.Fatalf("second Import() stats = %+v, want all skipped", stats)
	}

	rows, err := dstBackend.FetchTransactions(ctx, testDriver)
	if err != nil || len(rows) != 2 {
		t.Fatalf("FetchTransactions() = %d rows, %v, want 2", len(rows), err)
	}
	d, ok, err := NewDriversRepo(dst).Get(ctx, testDriver)
	if err != nil || !ok || d.Name != "Omar" {
		t.Fatalf("driver = %+v, %v, %v", d, ok, err)
	}
}

func TestImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	backend := NewLedgerBackend(store)
	if _, err := backend.days.Open(ctx, testDriver, "2024-03-11", time.Now()); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	payload := `{
  "version": 1,
  "driver": {"id": "` + testDriver + `", "name": "Omar", "mobile": "` + testDriver + `"},
  "days": [{"day_id": "2024-03-10", "status": "OPEN"}],
  "transactions": [{"id": "imp-1", "client_name": "Ali", "amount": "5", "kind": "INCOME", "occurred_at": "2024-03-10T09:00:00Z"}]
}`
	if _, err := backend.Import(ctx, strings.NewReader(payload)); !errors.Is(err, ledger.ErrAlreadyOpen) {
		t.Fatalf("Import() error = %v, want ErrAlreadyOpen", err)
	}
	known, err := backend.transactions.KnownIDs(ctx, []string{"imp-1"})
	if err != nil {
		t.Fatalf("KnownIDs() unexpected error: %v", err)
	}
	if known["imp-1"] {
		t.Fatal("transaction from failed import was persisted")
	}
	if _, ok, _ := NewDriversRepo(store).Get(ctx, testDriver); ok {
		t.Fatal("driver from failed import was persisted")
	}
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	backend := NewLedgerBackend(openTestStore(t))
	payload := `{"version": 1, "driver": {"id": "d"}, "transactions": [{"id": "x", "client_name": "", "amount": "5", "kind": "INCOME", "occurred_at": "2024-03-10T09:00:00Z"}]}`
	if _, err := backend.Import(context.Background(), strings.NewReader(payload)); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("Import() error = %v, want ErrValidation", err)
	}
}
