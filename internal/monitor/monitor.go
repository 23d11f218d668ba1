// Package monitor auto-closes the viewed ledger once its shift window ends.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lachiem1/driverlog/internal/ledger"
)

// Closer is the slice of a session the monitor needs.
type Closer interface {
	Ledger(dayID string) (ledger.Ledger, bool)
	CloseDayByID(ctx context.Context, dayID string, reason ledger.CloseReason) (bool, error)
}

type EventType string

const (
	EventAutoClosed  EventType = "auto_closed"
	EventCheckFailed EventType = "check_failed"
)

type Event struct {
	Type  EventType
	DayID string
	At    time.Time
	Err   error
}

type Config struct {
	Interval time.Duration
	Backoff  []time.Duration
	Location *time.Location
	Now      func() time.Time
}

type Monitor struct {
	cfg     Config
	closer  Closer
	onEvent func(Event)

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	dayID  string
	cancel context.CancelFunc
	manual chan struct{}
	done   chan struct{}
}

func New(cfg Config, closer Closer, onEvent func(Event)) (*Monitor, error) {
	if closer == nil {
		return nil, errors.New("monitor requires a closer")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{cfg: cfg, closer: closer, onEvent: onEvent}, nil
}

// Watch starts watching dayID, stopping any previous watch first.
func (m *Monitor) Watch(ctx context.Context, dayID string) error {
	if _, err := ledger.ShiftWindow(dayID, m.cfg.Location); err != nil {
		return fmt.Errorf("watch day: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	state := &activeRun{
		dayID:  dayID,
		cancel: cancel,
		manual: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	// Swap under one hold so concurrent Watch calls cannot both install a loop.
	m.mu.Lock()
	prev := m.active
	m.active = state
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	go m.runLoop(runCtx, state)
	return nil
}

// Leave stops the current watch and waits for its loop to exit.
func (m *Monitor) Leave() {
	m.mu.Lock()
	state := m.active
	m.active = nil
	m.mu.Unlock()

	if state != nil {
		state.cancel()
		<-state.done
	}
}

// CheckNow asks the running loop to evaluate immediately.
func (m *Monitor) CheckNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return errors.New("no day is being watched")
	}
	select {
	case m.active.manual <- struct{}{}:
	default:
	}
	return nil
}

func (m *Monitor) ActiveDay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.dayID
}

// Running reports whether the watch loop is still scheduling checks.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	state := m.active
	m.mu.Unlock()
	if state == nil {
		return false
	}
	select {
	case <-state.done:
		return false
	default:
		return true
	}
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeDone
	outcomeFailed
)

func (m *Monitor) runLoop(ctx context.Context, state *activeRun) {
	defer close(state.done)

	var retryTimer *time.Timer
	var retryC <-chan time.Time
	backoffIdx := 0

	handle := func(o outcome) bool {
		switch o {
		case outcomeDone:
			return true
		case outcomeFailed:
			retryTimer, retryC, backoffIdx = scheduleRetry(retryTimer, m.cfg.Backoff, backoffIdx)
		default:
			backoffIdx = 0
		}
		return false
	}

	if handle(m.check(ctx, state.dayID)) {
		return
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		var o outcome
		select {
		case <-ctx.Done():
			if retryTimer != nil {
				retryTimer.Stop()
			}
			return
		case <-state.manual:
			if retryTimer != nil {
				retryTimer.Stop()
				retryTimer = nil
				retryC = nil
			}
			o = m.check(ctx, state.dayID)
		case <-ticker.C:
			if retryC != nil {
				continue
			}
			o = m.check(ctx, state.dayID)
		case <-retryC:
			retryTimer = nil
			retryC = nil
			o = m.check(ctx, state.dayID)
		}
		if handle(o) {
			if retryTimer != nil {
				retryTimer.Stop()
			}
			return
		}
	}
}

func scheduleRetry(current *time.Timer, backoff []time.Duration, index int) (*time.Timer, <-chan time.Time, int) {
	if current != nil {
		current.Stop()
	}
	if index >= len(backoff) {
		index = len(backoff) - 1
	}
	t := time.NewTimer(backoff[index])
	nextIdx := index + 1
	if nextIdx >= len(backoff) {
		nextIdx = len(backoff) - 1
	}
	return t, t.C, nextIdx
}

// check closes dayID if its window has ended. The loop stops once the day
// is closed or gone.
func (m *Monitor) check(ctx context.Context, dayID string) outcome {
	l, ok := m.closer.Ledger(dayID)
	if !ok || !l.IsOpen() {
		return outcomeDone
	}
	w, err := ledger.ShiftWindow(dayID, m.cfg.Location)
	if err != nil {
		return outcomeDone
	}
	if !w.Progress(m.cfg.Now()).Expired {
		return outcomePending
	}
	if ctx.Err() != nil {
		return outcomeDone
	}

	changed, err := m.closer.CloseDayByID(ctx, dayID, ledger.CloseAuto)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeDone
		}
		m.emit(Event{Type: EventCheckFailed, DayID: dayID, At: m.cfg.Now().UTC(), Err: err})
		return outcomeFailed
	}
	if changed {
		m.emit(Event{Type: EventAutoClosed, DayID: dayID, At: m.cfg.Now().UTC()})
	}
	return outcomeDone
}

func (m *Monitor) emit(evt Event) {
	if m.onEvent == nil {
		return
	}
	m.onEvent(evt)
}
