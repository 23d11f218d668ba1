package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrClosedLedger = errors.New("ledger is closed")
	ErrAlreadyOpen  = errors.New("another day is already open")
	ErrUnsupported  = errors.New("operation not supported by backend")
	ErrTransientIO  = errors.New("backing store unreachable")
	ErrNoSelection  = errors.New("no ledger selected")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidateEntry checks user input for a new or edited transaction.
// It returns the trimmed client name.
func ValidateEntry(clientName string, amount decimal.Decimal, kind Kind) (string, error) {
	name := strings.TrimSpace(clientName)
	if name == "" {
		return "", fmt.Errorf("%w: client name is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if kind != KindIncome && kind != KindExpense {
		return "", fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}
	return name, nil
}
