// Package events carries ledger notifications out of the session.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	DayOpened            Kind = "day_opened"
	DayClosed            Kind = "day_closed"
	TransactionAdded     Kind = "transaction_added"
	TransactionUpdated   Kind = "transaction_updated"
	TransactionDeleted   Kind = "transaction_deleted"
	TransactionRetracted Kind = "transaction_retracted"
)

type Event struct {
	Kind          Kind      `json:"kind"`
	DriverID      string    `json:"driver_id"`
	DayID         string    `json:"day_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	At            time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events as structured log records.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	if e.Kind == TransactionRetracted {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("driver_id", e.DriverID),
	}
	if e.DayID != "" {
		attrs = append(attrs, slog.String("day_id", e.DayID))
	}
	if e.TransactionID != "" {
		attrs = append(attrs, slog.String("transaction_id", e.TransactionID))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.Amount != "" {
		attrs = append(attrs, slog.String("amount", e.Amount))
	}
	p.logger.LogAttrs(ctx, level, "ledger event", attrs...)
	return nil
}
