package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lachiem1/driverlog/internal/ledger"
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true)
	openStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5CCB76")).Bold(true)
	closedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F15B5B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8D88A8"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD54A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F15B5B"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5CCB76"))
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F47A60"))
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#F47A60")).
		Padding(1, 2)
	if m.width > 0 {
		frame = frame.Width(max(1, m.width-frame.GetHorizontalBorderSize()))
	}

	sections := []string{renderTitle(), ""}
	switch {
	case m.loading && !m.hasDay:
		sections = append(sections, mutedStyle.Render("loading..."))
	case !m.hasDay:
		sections = append(sections, mutedStyle.Render("no day selected. press o to open today."))
	default:
		sections = append(sections, m.renderDay()...)
	}

	if r, ok := m.ledgers.Reminder(); ok {
		sections = append(sections, "", renderReminder(r))
	}
	if ids := m.ledgers.OpenViolation(); len(ids) > 0 {
		sections = append(sections, "", errorStyle.Render("more than one day is open: "+strings.Join(ids, ", ")))
	}
	if m.notice != "" {
		sections = append(sections, "", noticeStyle.Render(m.notice))
	}
	if m.errText != "" {
		sections = append(sections, "", errorStyle.Render(m.errText))
	}
	sections = append(sections, "", mutedStyle.Render("o open  c close  r refresh  q quit"))

	return frame.Render(strings.Join(sections, "\n"))
}

func (m model) renderDay() []string {
	l := m.current
	status := closedStyle.Render(string(l.Status))
	if l.IsOpen() {
		status = openStyle.Render(string(l.Status))
	}
	lines := []string{labelStyle.Render("day: ") + l.ID + "  " + status}

	if w, err := ledger.ShiftWindow(l.ID, m.location()); err == nil {
		p := w.Progress(m.now())
		remaining := fmt.Sprintf("%dh left", p.RemainingHours)
		if p.Expired {
			remaining = "window ended"
		}
		lines = append(lines,
			labelStyle.Render("shift: ")+w.Start.Format("Mon 02 Jan 15:04")+" to "+w.End.Format("Mon 02 Jan 15:04"),
			m.bar.ViewAs(p.Percent/100)+"  "+mutedStyle.Render(remaining),
		)
	}

	sum := ledger.Summarize(l.Transactions)
	lines = append(lines, "",
		labelStyle.Render("income ")+incomeStyle.Render(sum.Income.StringFixed(2))+
			labelStyle.Render("  expense ")+expenseStyle.Render(sum.Expense.StringFixed(2))+
			labelStyle.Render("  net ")+sum.Net.StringFixed(2)+
			mutedStyle.Render(fmt.Sprintf("  (%d)", sum.Count)),
	)

	if len(l.Transactions) == 0 {
		return append(lines, "", mutedStyle.Render("no transactions yet"))
	}
	lines = append(lines, "")
	loc := m.location()
	for i, tx := range ledger.View(l.Transactions, ledger.ViewOptions{}) {
		if i == m.recent {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("... %d more", len(l.Transactions)-m.recent)))
			break
		}
		amount := incomeStyle.Render("+" + tx.Amount.StringFixed(2))
		if tx.Kind == ledger.KindExpense {
			amount = expenseStyle.Render("-" + tx.Amount.StringFixed(2))
		}
		lines = append(lines, fmt.Sprintf("%s  %-24s %s", tx.OccurredAt.In(loc).Format("15:04"), truncate(tx.ClientName, 24), amount))
	}
	return lines
}

func renderReminder(r ledger.Reminder) string {
	if r.Level == ledger.ReminderUrgent {
		return closedStyle.Render("day " + r.DayID + " is still open from a past shift. close it.")
	}
	return noticeStyle.Render("it's getting late. remember to close day " + r.DayID + ".")
}

func renderTitle() string {
	glyphs := map[rune][3]string{
		'D': {"█▀▄", "█ █", "▀▀ "},
		'E': {"█▀▀", "█▀▀", "▀▀▀"},
		'G': {"█▀▀", "█▄█", "▀▀▀"},
		'I': {"█", "█", "▀"},
		'L': {"█  ", "█▄▄", "▀▀▀"},
		'O': {"█▀█", "█▄█", "▀▀▀"},
		'R': {"█▀█", "█▀▄", "▀ ▀"},
		'V': {"█ █", "█ █", " ▀ "},
	}
	lines := [3][]string{{}, {}, {}}
	for _, ch := range "DRIVERLOG" {
		g := glyphs[ch]
		for i := range lines {
			lines[i] = append(lines[i], g[i])
		}
	}
	coral := lipgloss.NewStyle().Foreground(lipgloss.Color("#F47A60")).Bold(true)
	out := make([]string, 0, 3)
	for i := range lines {
		out = append(out, coral.Render(strings.Join(lines[i], " ")))
	}
	return strings.Join(out, "\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
