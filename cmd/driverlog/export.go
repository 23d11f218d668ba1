package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lachiem1/driverlog/internal/config"
	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/storage"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the signed-in driver's history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				if a.remote() {
					return fmt.Errorf("%w: export reads the local store", ledger.ErrUnsupported)
				}
				driverID, err := a.driverID(cmd.Context())
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" && outPath != "-" {
					f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				return storage.NewLedgerBackend(a.store).Export(cmd.Context(), driverID, w)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a JSON export into the local store (all or nothing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				if a.remote() {
					return fmt.Errorf("%w: import writes the local store", ledger.ErrUnsupported)
				}
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()

				stats, err := storage.NewLedgerBackend(a.store).Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d days, %d transactions (%d already present)\n",
					okStyle.Render("imported"), stats.Days, stats.Transactions, stats.Skipped)
				return nil
			})
		},
	}
}

func newWipeCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the local database files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: pass --yes to delete the local database", ledger.ErrValidation)
			}
			if _, err := config.Load(flags.envFile); err != nil {
				return err
			}
			dbCfg, err := storage.ConfigFromEnv()
			if err != nil {
				return err
			}
			existed, err := storage.Wipe(dbCfg)
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no local database at "+dbCfg.Path))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("wiped ")+dbCfg.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
