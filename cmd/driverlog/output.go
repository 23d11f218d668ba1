package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lachiem1/driverlog/internal/ledger"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5CCB76")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD54A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F15B5B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8D88A8"))
	openStyle    = okStyle
	closedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F15B5B"))
	borderColour = lipgloss.Color("#F47A60")
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColour)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		String()
}

func renderStatus(s ledger.Status) string {
	if s == ledger.StatusOpen {
		return openStyle.Render(string(s))
	}
	return closedStyle.Render(string(s))
}

func signedAmount(tx ledger.Transaction) string {
	if tx.Kind == ledger.KindExpense {
		return "-" + tx.Amount.StringFixed(2)
	}
	return "+" + tx.Amount.StringFixed(2)
}

func printLedger(w io.Writer, l ledger.Ledger, txs []ledger.Transaction, loc *time.Location, now time.Time) {
	sum := ledger.Summarize(l.Transactions)
	fmt.Fprintf(w, "%s %s  %s\n", headerStyle.Render("day"), l.ID, renderStatus(l.Status))
	if win, err := ledger.ShiftWindow(l.ID, loc); err == nil {
		p := win.Progress(now)
		line := fmt.Sprintf("shift %s to %s", win.Start.Format("Mon 02 Jan 15:04"), win.End.Format("Mon 02 Jan 15:04"))
		if l.IsOpen() && !p.Expired {
			line += fmt.Sprintf(", %dh left (%.0f%%)", p.RemainingHours, p.Percent)
		}
		fmt.Fprintln(w, mutedStyle.Render(line))
	}
	fmt.Fprintf(w, "income %s  expense %s  net %s\n",
		sum.Income.StringFixed(2), sum.Expense.StringFixed(2), sum.Net.StringFixed(2))

	if len(txs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no transactions"))
		return
	}
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.OccurredAt.In(loc).Format("15:04"),
			tx.ClientName,
			signedAmount(tx),
			tx.ID,
		})
	}
	fmt.Fprintln(w, renderTable([]string{"time", "client", "amount", "id"}, rows))
}

func printReminder(w io.Writer, r ledger.Reminder, ok bool) {
	if !ok {
		return
	}
	if r.Level == ledger.ReminderUrgent {
		fmt.Fprintln(w, errorStyle.Render("day "+r.DayID+" from a past shift is still open. close it with `driverlog close --day "+r.DayID+"`."))
		return
	}
	fmt.Fprintln(w, warnStyle.Render("it's getting late. remember to close day "+r.DayID+"."))
}

// explain turns engine sentinels into something a driver can act on.
func explain(err error) string {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return "invalid input: " + err.Error()
	case errors.Is(err, ledger.ErrClosedLedger):
		return "this day is closed: " + err.Error()
	case errors.Is(err, ledger.ErrAlreadyOpen):
		return "another day is still open; close it first: " + err.Error()
	case errors.Is(err, ledger.ErrUnsupported):
		return "not supported by this backend: " + err.Error()
	case errors.Is(err, ledger.ErrTransientIO):
		return "store unreachable, try again: " + err.Error()
	case errors.Is(err, ledger.ErrNoSelection):
		return "no day selected; open today or pass --day"
	case errors.Is(err, ledger.ErrUnauthorized):
		return "not authorized; run `driverlog login` again"
	}
	return err.Error()
}
