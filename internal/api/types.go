package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID accepts either a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	*id = ID(strings.Trim(string(data), `"`))
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Amount decodes a JSON number or numeric string. Anything else leaves Valid
// false rather than failing the whole response.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err == nil {
		a.Value, a.Valid = d, true
	}
	return nil
}

func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return a.Value.String()
}

type Transaction struct {
	ID          ID     `json:"id"`
	DriverID    ID     `json:"driver_id"`
	Amount      Amount `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type Day struct {
	ID       ID      `json:"id"`
	DriverID ID      `json:"driver_id"`
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	OpenedAt string  `json:"opened_at"`
	ClosedAt *string `json:"closed_at"`
}

// CreateTransactionRequest sends amount as a bare JSON number; decimal's own
// marshaller would quote it.
type CreateTransactionRequest struct {
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
}

type RegisterRequest struct {
	FullName      string `json:"fullName"`
	MobilePhone   string `json:"mobilePhone"`
	Password      string `json:"password"`
	LicenseNumber string `json:"license_number"`
}

// parseInstant returns the zero time for anything that is not an absolute
// ISO-8601 instant.
func parseInstant(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
