package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
)

func newDaysCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "days",
		Short: "List every day ledger, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				out := cmd.OutOrStdout()
				ledgers := sess.Ledgers()
				if len(ledgers) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("no days yet. run `driverlog open` to start one."))
					return nil
				}
				selected := sess.Selected()
				rows := make([][]string, 0, len(ledgers))
				for _, l := range ledgers {
					sum := ledger.Summarize(l.Transactions)
					marker := ""
					if l.ID == selected {
						marker = "*"
					}
					rows = append(rows, []string{
						marker + l.ID,
						renderStatus(l.Status),
						strconv.Itoa(sum.Count),
						sum.Income.StringFixed(2),
						sum.Expense.StringFixed(2),
						sum.Net.StringFixed(2),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"day", "status", "txs", "income", "expense", "net"}, rows))
				if ids := sess.OpenViolation(); len(ids) > 0 {
					fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("more than one day is open: %v", ids)))
				}
				r, ok := sess.Reminder()
				printReminder(out, r, ok)
				return nil
			})
		},
	}
}

func newSelectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "select DAY",
		Short: "Make DAY the default for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				if err := sess.Select(args[0]); err != nil {
					return err
				}
				a.rememberDay(cmd.Context(), sess)
				fmt.Fprintln(cmd.OutOrStdout(), "selected "+args[0])
				return nil
			})
		},
	}
}

func newOpenCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open today's ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				l, err := sess.OpenDay(cmd.Context())
				if err != nil {
					return err
				}
				a.rememberDay(cmd.Context(), sess)
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("day "+l.ID+" is open"))
				return nil
			})
		},
	}
}

func newCloseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the selected day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				dayID := sess.Selected()
				closed, err := sess.CloseDay(cmd.Context())
				if err != nil {
					return err
				}
				if !closed {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("day "+dayID+" was already closed"))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("day "+dayID+" closed"))
				return nil
			})
		},
	}
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	var (
		kind   string
		sortBy string
		search string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the selected day's transactions and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := ledger.ViewOptions{Search: search, Sort: ledger.SortBy(sortBy)}
			if kind != "" && kind != "all" {
				k, ok := ledger.ParseKind(kind)
				if !ok {
					return fmt.Errorf("%w: --kind must be income, expense or all", ledger.ErrValidation)
				}
				opts.Kind = k
			}
			if opts.Sort != ledger.SortByTime && opts.Sort != ledger.SortByAmount {
				return fmt.Errorf("%w: --sort must be time or amount", ledger.ErrValidation)
			}

			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				l, ok := sess.Current()
				if !ok {
					return ledger.ErrNoSelection
				}
				a.rememberDay(cmd.Context(), sess)
				out := cmd.OutOrStdout()
				printLedger(out, l, ledger.View(l.Transactions, opts), sess.Location(), time.Now())
				r, ok := sess.Reminder()
				printReminder(out, r, ok)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "all", "income, expense or all")
	cmd.Flags().StringVar(&sortBy, "sort", string(ledger.SortByTime), "time or amount")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive client name filter")
	return cmd
}
