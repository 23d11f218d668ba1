package storage

import (
	"context"
	"fmt"
)

const (
	sessionDriverKey = "session.driver_id"
	sessionDayKey    = "session.day_id"
)

// Pointer records which driver is logged in and which day they last viewed.
type Pointer struct {
	DriverID string
	DayID    string
}

type SessionRepo struct {
	config *AppConfigRepo
}

func NewSessionRepo(store *Store) *SessionRepo {
	return &SessionRepo{config: NewAppConfigRepo(store)}
}

func (r *SessionRepo) Load(ctx context.Context) (Pointer, error) {
	driverID, _, err := r.config.Get(ctx, sessionDriverKey)
	if err != nil {
		return Pointer{}, fmt.Errorf("load session driver: %w", err)
	}
	dayID, _, err := r.config.Get(ctx, sessionDayKey)
	if err != nil {
		return Pointer{}, fmt.Errorf("load session day: %w", err)
	}
	return Pointer{DriverID: driverID, DayID: dayID}, nil
}

// SetDriver switches the active driver and forgets the previous day selection.
func (r *SessionRepo) SetDriver(ctx context.Context, driverID string) error {
	if err := r.config.UpsertMany(ctx, map[string]string{sessionDriverKey: driverID}); err != nil {
		return err
	}
	return r.config.Delete(ctx, sessionDayKey)
}

func (r *SessionRepo) SetDay(ctx context.Context, dayID string) error {
	if dayID == "" {
		return r.config.Delete(ctx, sessionDayKey)
	}
	return r.config.UpsertMany(ctx, map[string]string{sessionDayKey: dayID})
}

func (r *SessionRepo) Clear(ctx context.Context) error {
	return r.config.Delete(ctx, sessionDriverKey, sessionDayKey)
}
