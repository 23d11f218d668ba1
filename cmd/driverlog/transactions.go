package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
	"github.com/lachiem1/driverlog/internal/storage"
)

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", ledger.ErrValidation, raw)
	}
	return d, nil
}

func parseKindFlag(raw string) (ledger.Kind, error) {
	k, ok := ledger.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("%w: kind must be income or expense", ledger.ErrValidation)
	}
	return k, nil
}

func newAddCmd(flags *rootFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "add CLIENT AMOUNT",
		Short: "Record a transaction on the selected day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			k, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				tx, err := sess.AddTransaction(cmd.Context(), args[0], amount, k)
				if err != nil {
					return err
				}
				a.rememberDay(cmd.Context(), sess)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", okStyle.Render("added"), tx.ClientName, signedAmount(tx), mutedStyle.Render(tx.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(ledger.KindIncome), "income or expense")
	return cmd
}

func newEditCmd(flags *rootFlags) *cobra.Command {
	var (
		client string
		amount string
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a transaction on an open day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				existing, ok := findTransaction(sess, args[0])
				if !ok {
					return fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, args[0])
				}
				next := existing
				if cmd.Flags().Changed("client") {
					next.ClientName = client
				}
				if cmd.Flags().Changed("amount") {
					d, err := parseAmount(amount)
					if err != nil {
						return err
					}
					next.Amount = d
				}
				if cmd.Flags().Changed("kind") {
					k, err := parseKindFlag(kind)
					if err != nil {
						return err
					}
					next.Kind = k
				}

				tx, err := sess.EditTransaction(cmd.Context(), existing.ID, next.ClientName, next.Amount, next.Kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okStyle.Render("updated"), tx.ClientName, signedAmount(tx))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "new client name")
	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&kind, "kind", "", "income or expense")
	return cmd
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a transaction from an open day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				if err := sess.DeleteTransaction(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted ")+args[0])
				return nil
			})
		},
	}
}

func newClientsCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "clients [PREFIX]",
		Short: "Suggest client names from past transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				if a.remote() {
					return fmt.Errorf("%w: client suggestions read the local store", ledger.ErrUnsupported)
				}
				driverID, err := a.driverID(cmd.Context())
				if err != nil {
					return err
				}
				names, err := storage.NewTransactionsRepo(a.store).ClientNames(cmd.Context(), driverID, prefix, limit)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return errors.New("no matching clients")
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of names")
	return cmd
}

func findTransaction(sess *session.Session, id string) (ledger.Transaction, bool) {
	for _, l := range sess.Ledgers() {
		if tx, ok := l.Find(id); ok {
			return tx, true
		}
	}
	return ledger.Transaction{}, false
}
