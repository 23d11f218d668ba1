package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lachiem1/driverlog/internal/monitor"
	"github.com/lachiem1/driverlog/internal/session"
	"github.com/lachiem1/driverlog/internal/tui"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the selected day that closes it when the shift ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.fullScreen = true
			return withSession(cmd.Context(), flags, func(a *app, sess *session.Session) error {
				events := make(chan monitor.Event, 8)
				mon, err := monitor.New(monitor.Config{
					Interval: a.cfg.AutoCloseInterval,
					Location: a.cfg.Location,
				}, sess, func(evt monitor.Event) {
					// Never block the monitor loop on a slow view.
					select {
					case events <- evt:
					default:
					}
				})
				if err != nil {
					return err
				}
				defer mon.Leave()

				model := tui.New(cmd.Context(), tui.Options{
					Ledgers: sess,
					Watcher: mon,
					Events:  events,
				})
				_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
				if err == nil {
					a.rememberDay(cmd.Context(), sess)
				}
				return err
			})
		},
	}
}
