package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"checkmate/internal/command"
	"checkmate/internal/config"
	"checkmate/internal/format"
	"checkmate/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigDir  string
	DB         string
	Format     string
	PrettyJSON bool

	cfg   *config.Config
	st    *store.Store
	clock *command.Clock

	// set by subcommands that appended to the log
	mutated bool
}

func NewRootCmd() *cobra.Command {
	app := &App{clock: command.NewClock()}

	cmd := &cobra.Command{
		Use:          "checkmate",
		Short:        "Checklist templates with an offline command log",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a template and add a task
  checkmate templates create "Opening shift"
  checkmate tasks add <template-id> "Unlock doors"

  # Start a checklist from it and tick a box
  checkmate checklists create <template-id>
  checkmate checklists check <checklist-id> <task-id>

  # Push pending edits
  checkmate sync push
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigDir, cmd.Flags())
		if err != nil {
			return writeErr(cmd, err)
		}
		app.cfg = cfg
		app.Format = cfg.Format
		app.DB = cfg.DB
		return nil
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		defer app.close()
		if !app.mutated || app.cfg == nil || !app.cfg.Sync.Auto || !app.cfg.RemoteConfigured() {
			return nil
		}
		// explicit sync commands already pushed
		if strings.HasPrefix(cmd.CommandPath(), "checkmate sync") {
			return nil
		}
		autoSyncBestEffort(cmd, app)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config-dir", "", "Config directory (default $CHECKMATE_CONFIG_DIR or ~/.checkmate)")
	cmd.PersistentFlags().String("db", "", "Path to the sqlite database (overrides config)")
	cmd.PersistentFlags().String("format", "", "Output format (json|text)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newTemplatesCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newRemindersCmd(app))
	cmd.AddCommand(newChecklistsCmd(app))
	cmd.AddCommand(newLogCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newLegacyCmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

// store opens the database once per invocation.
func (a *App) store(ctx context.Context) (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	st, err := store.Open(ctx, a.DB)
	if err != nil {
		return nil, err
	}
	last, err := st.LastIssuedAt(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.clock.Observe(last)
	a.st = st
	return st, nil
}

func (a *App) close() {
	if a.st != nil {
		_ = a.st.Close()
		a.st = nil
	}
}

func (a *App) logger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
