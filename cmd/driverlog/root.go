package main

import (
	"github.com/spf13/cobra"
)

const appVersion = "0.3.0"

type rootFlags struct {
	envFile string
	day     string
	logFile string
	// fullScreen is set by commands that own the terminal; logs then go to
	// logFile or nowhere.
	fullScreen bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "driverlog",
		Short:         "Daily cash ledger for drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Version = appVersion
	cmd.SetVersionTemplate("driverlog v{{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "append logs to this file instead of stderr")
	cmd.PersistentFlags().StringVar(&flags.day, "day", "", "day to act on (YYYY-MM-DD); defaults to the last viewed day")

	cmd.AddCommand(
		newAuthCmd(flags),
		newLoginCmd(flags),
		newLogoutCmd(flags),
		newRegisterCmd(flags),
		newDaysCmd(flags),
		newSelectCmd(flags),
		newOpenCmd(flags),
		newCloseCmd(flags),
		newShowCmd(flags),
		newAddCmd(flags),
		newEditCmd(flags),
		newDeleteCmd(flags),
		newClientsCmd(flags),
		newWatchCmd(flags),
		newExportCmd(flags),
		newImportCmd(flags),
		newWipeCmd(flags),
	)
	return cmd
}
