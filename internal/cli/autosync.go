package cli

import (
	"context"
	"errors"
	"fmt"

	"checkmate/internal/syncer"

	"github.com/spf13/cobra"
)

func (a *App) synchronizer(cmd *cobra.Command) (*syncer.Synchronizer, error) {
	if !a.cfg.RemoteConfigured() {
		return nil, errors.New("no remote configured; set remote.url in config.json or CHECKMATE_REMOTE_URL")
	}
	st, err := a.store(cmd.Context())
	if err != nil {
		return nil, err
	}
	t := syncer.NewHTTPTransport(a.cfg.Remote.URL, a.cfg.Remote.Token, a.cfg.Sync.Timeout)
	return syncer.New(st, t, syncer.Options{
		Timeout:  a.cfg.Sync.Timeout,
		Attempts: a.cfg.Sync.Attempts,
		Backoff:  a.cfg.Sync.Backoff,
		Logger:   a.logger(cmd),
	}), nil
}

// autoSyncBestEffort pushes after a mutating command. Failures only warn:
// the commands stay in the log for the next attempt.
func autoSyncBestEffort(cmd *cobra.Command, app *App) {
	s, err := app.synchronizer(cmd)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Sync.Timeout*2)
	defer cancel()
	if _, err := s.Push(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: auto-sync failed: %v\n", err)
	}
}
