package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkmate/internal/syncer"

	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending commands and pull remote state",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.synchronizer(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := s.Sync(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, pushView(res))
		},
	}
	cmd.AddCommand(newSyncPushCmd(app))
	cmd.AddCommand(newSyncPullCmd(app))
	cmd.AddCommand(newSyncStatusCmd(app))
	cmd.AddCommand(newSyncWatchCmd(app))
	return cmd
}

func pushView(res syncer.PushResult) map[string]any {
	rejected := res.Rejected
	if rejected == nil {
		rejected = []syncer.Ack{}
	}
	return map[string]any{
		"pushed":       res.Pushed,
		"acknowledged": res.Acknowledged,
		"remaining":    res.Remaining,
		"rejected":     rejected,
	}
}

func newSyncPushCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push pending commands to the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.synchronizer(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := s.Push(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, pushView(res))
		},
	}
}

func newSyncPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace local base state with the remote snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.synchronizer(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			snap, err := s.Pull(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"templates":  len(snap.Templates),
				"checklists": len(snap.Checklists),
			})
		},
	}
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending command count and last sync time",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := st.Count(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			last, err := st.LastSyncedAt(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			var lastOut any
			if !last.IsZero() {
				lastOut = last.Format(time.RFC3339)
			}
			return writeOut(cmd, app, map[string]any{
				"pending":      n,
				"unsynced":     n > 0,
				"lastSyncedAt": lastOut,
				"remote":       app.cfg.Remote.URL,
			})
		},
	}
}

func newSyncWatchCmd(app *App) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync in the background until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.synchronizer(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if interval <= 0 {
				interval = app.cfg.Sync.Interval
			}
			logger := app.logger(cmd)
			r := syncer.NewRunner(s, app.cfg.Sync.Debounce)
			r.OnResult = func(res syncer.PushResult, err error) {
				if err != nil {
					logger.Printf("sync: %v", err)
					return
				}
				if res.Pushed > 0 {
					logger.Printf("sync: pushed %d, acknowledged %d, remaining %d", res.Pushed, res.Acknowledged, res.Remaining)
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := r.Run(ctx, interval); err != nil && ctx.Err() == nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between syncs (default sync.interval)")
	return cmd
}
