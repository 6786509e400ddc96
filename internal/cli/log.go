package cli

import (
	"checkmate/internal/format"

	"github.com/spf13/cobra"
)

func newLogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the local command log",
	}
	cmd.AddCommand(newLogListCmd(app))
	return cmd
}

func newLogListCmd(app *App) *cobra.Command {
	var aggregate string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commands not yet acknowledged by the remote, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			cmds, err := st.All(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]format.LogEntry, 0, len(cmds))
			for _, c := range cmds {
				e := c.Env()
				if aggregate != "" && e.AggregateID != aggregate {
					continue
				}
				out = append(out, format.LogEntry{
					CommandID:   e.CommandID,
					Type:        c.Tag(),
					Kind:        string(c.Kind()),
					AggregateID: e.AggregateID,
					IssuedAt:    e.Timestamp,
				})
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "Only commands for this template or checklist id")
	return cmd
}
