package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/monitor"
)

// Ledgers is the part of a session the watch view drives.
type Ledgers interface {
	Location() *time.Location
	Current() (ledger.Ledger, bool)
	Reminder() (ledger.Reminder, bool)
	OpenViolation() []string
	Refresh(ctx context.Context) error
	OpenDay(ctx context.Context) (ledger.Ledger, error)
	CloseDay(ctx context.Context) (bool, error)
}

// Watcher is the auto-close monitor.
type Watcher interface {
	Watch(ctx context.Context, dayID string) error
	Leave()
	CheckNow() error
	ActiveDay() string
}

type Options struct {
	Ledgers Ledgers
	Watcher Watcher
	// Events carries monitor events into the program; nil disables the notice.
	Events <-chan monitor.Event
	Now    func() time.Time
	// Recent caps the transaction list.
	Recent int
}

type refreshDoneMsg struct {
	err error
}

type openDoneMsg struct {
	err error
}

type closeDoneMsg struct {
	closed bool
	err    error
}

type clockTickMsg struct{}

type monitorEventMsg struct {
	event monitor.Event
}

type clearNoticeMsg struct {
	id int
}

type model struct {
	ctx     context.Context
	ledgers Ledgers
	watcher Watcher
	events  <-chan monitor.Event
	now     func() time.Time
	recent  int

	width  int
	height int
	bar    progress.Model

	current  ledger.Ledger
	hasDay   bool
	loading  bool
	busy     bool
	notice   string
	noticeID int
	errText  string
	quitting bool
}

func New(ctx context.Context, opts Options) tea.Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	recent := opts.Recent
	if recent <= 0 {
		recent = 8
	}
	bar := progress.New(progress.WithGradient("#F47A60", "#FFD54A"))
	bar.Width = 48

	return model{
		ctx:     ctx,
		ledgers: opts.Ledgers,
		watcher: opts.Watcher,
		events:  opts.Events,
		now:     now,
		recent:  recent,
		bar:     bar,
		loading: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		clockTickCmd(),
		waitForMonitorEvent(m.events),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(20, min(72, msg.Width-16))
		return m, nil

	case clockTickMsg:
		return m, clockTickCmd()

	case refreshDoneMsg:
		m.loading = false
		m.errText = ""
		if msg.err != nil {
			m.errText = "refresh failed: " + msg.err.Error()
		}
		m.syncCurrent()
		return m, nil

	case openDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = describeError("open day", msg.err)
			m.syncCurrent()
			return m, nil
		}
		m.errText = ""
		m.syncCurrent()
		return m.withNotice("day " + m.current.ID + " opened")

	case closeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = describeError("close day", msg.err)
			return m, nil
		}
		m.errText = ""
		m.syncCurrent()
		if !msg.closed {
			return m.withNotice("day was already closed")
		}
		return m.withNotice("day " + m.current.ID + " closed")

	case monitorEventMsg:
		next := waitForMonitorEvent(m.events)
		switch msg.event.Type {
		case monitor.EventAutoClosed:
			m.syncCurrent()
			updated, notice := m.withNotice("day " + msg.event.DayID + " auto-closed at " + msg.event.At.In(m.location()).Format("15:04"))
			return updated, tea.Batch(next, notice)
		case monitor.EventCheckFailed:
			if msg.event.Err != nil {
				m.errText = "auto-close check failed: " + msg.event.Err.Error()
			}
		}
		return m, next

	case clearNoticeMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.watcher != nil {
				m.watcher.Leave()
			}
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			if m.watcher != nil && m.watcher.ActiveDay() != "" {
				_ = m.watcher.CheckNow()
			}
			return m, m.refreshCmd()
		case "o":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.openCmd()
		case "c":
			if m.busy || !m.hasDay || !m.current.IsOpen() {
				return m, nil
			}
			m.busy = true
			return m, m.closeCmd()
		}
	}
	return m, nil
}

// syncCurrent pulls the selected ledger from the session and points the
// monitor at it while it is open.
func (m *model) syncCurrent() {
	m.current, m.hasDay = m.ledgers.Current()
	if m.watcher == nil {
		return
	}
	if !m.hasDay || !m.current.IsOpen() {
		if m.watcher.ActiveDay() != "" {
			m.watcher.Leave()
		}
		return
	}
	if m.watcher.ActiveDay() == m.current.ID {
		return
	}
	if err := m.watcher.Watch(m.ctx, m.current.ID); err != nil {
		m.errText = "watch day: " + err.Error()
	}
}

func (m model) withNotice(text string) (model, tea.Cmd) {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	return m, tea.Tick(6*time.Second, func(time.Time) tea.Msg {
		return clearNoticeMsg{id: id}
	})
}

func (m model) location() *time.Location {
	if loc := m.ledgers.Location(); loc != nil {
		return loc
	}
	return time.Local
}

func (m model) refreshCmd() tea.Cmd {
	ctx, ledgers := m.ctx, m.ledgers
	return func() tea.Msg {
		return refreshDoneMsg{err: ledgers.Refresh(ctx)}
	}
}

func (m model) openCmd() tea.Cmd {
	ctx, ledgers := m.ctx, m.ledgers
	return func() tea.Msg {
		_, err := ledgers.OpenDay(ctx)
		return openDoneMsg{err: err}
	}
}

func (m model) closeCmd() tea.Cmd {
	ctx, ledgers := m.ctx, m.ledgers
	return func() tea.Msg {
		closed, err := ledgers.CloseDay(ctx)
		return closeDoneMsg{closed: closed, err: err}
	}
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return clockTickMsg{}
	})
}

func waitForMonitorEvent(events <-chan monitor.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return monitorEventMsg{event: evt}
	}
}

func describeError(action string, err error) string {
	switch {
	case errors.Is(err, ledger.ErrAlreadyOpen):
		return action + ": another day is still open"
	case errors.Is(err, ledger.ErrClosedLedger):
		return action + ": today's day is already closed"
	case errors.Is(err, ledger.ErrNoSelection):
		return action + ": no day selected"
	case errors.Is(err, ledger.ErrTransientIO):
		return action + ": store unreachable, try again"
	case errors.Is(err, ledger.ErrUnauthorized):
		return action + ": not signed in"
	}
	return action + ": " + err.Error()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
