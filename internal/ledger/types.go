package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// ParseKind accepts either case ("income", "INCOME").
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(KindIncome):
		return KindIncome, true
	case string(KindExpense):
		return KindExpense, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusOpen):
		return StatusOpen, true
	case string(StatusClosed):
		return StatusClosed, true
	default:
		return "", false
	}
}

type CloseReason string

const (
	CloseManual CloseReason = "manual"
	CloseAuto   CloseReason = "auto"
)

type Driver struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type Transaction struct {
	ID         string          `json:"id"`
	ClientName string          `json:"clientName"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       Kind            `json:"kind"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Draft is a transaction that has not been stored yet.
type Draft struct {
	ClientName string
	Amount     decimal.Decimal
	Kind       Kind
	OccurredAt time.Time
}

// Row is a raw transaction as returned by a backend, before reconciliation.
type Row struct {
	ID         string
	DriverID   string
	ClientName string
	Amount     decimal.Decimal
	Kind       Kind
	OccurredAt time.Time
	// Invalid is set by a backend that could not decode a field.
	Invalid string
}

func (r Row) Transaction() Transaction {
	return Transaction{
		ID:         r.ID,
		ClientName: r.ClientName,
		Amount:     r.Amount,
		Kind:       r.Kind,
		OccurredAt: r.OccurredAt,
	}
}

// DayStatus is an authoritative status record for one day.
type DayStatus struct {
	DayID    string     `json:"dayId"`
	Status   Status     `json:"status"`
	OpenedAt *time.Time `json:"openedAt,omitempty"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

type Ledger struct {
	ID           string        `json:"id"`
	DriverID     string        `json:"driverId"`
	ShiftStart   time.Time     `json:"shiftStart"`
	Status       Status        `json:"status"`
	Transactions []Transaction `json:"transactions"`
	OpenedAt     *time.Time    `json:"openedAt,omitempty"`
	ClosedAt     *time.Time    `json:"closedAt,omitempty"`
}

func (l Ledger) IsOpen() bool {
	return l.Status == StatusOpen
}

// Clone returns a deep copy so callers never alias the reconciler's working set.
func (l Ledger) Clone() Ledger {
	out := l
	out.Transactions = append([]Transaction(nil), l.Transactions...)
	out.OpenedAt = cloneTime(l.OpenedAt)
	out.ClosedAt = cloneTime(l.ClosedAt)
	return out
}

func (l Ledger) Find(txID string) (Transaction, bool) {
	for _, tx := range l.Transactions {
		if tx.ID == txID {
			return tx, true
		}
	}
	return Transaction{}, false
}

func CloneLedgers(in []Ledger) []Ledger {
	out := make([]Ledger, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
