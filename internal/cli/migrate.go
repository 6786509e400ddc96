package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"checkmate/internal/migrate"
	"checkmate/internal/model"
	"checkmate/internal/syncer"
	"checkmate/internal/tree"

	"github.com/spf13/cobra"
)

func newMigrateCmd(app *App) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Turn legacy rows into create commands (runs once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.store(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			m := &migrate.Migrator{
				Source:   st,
				Sink:     syncer.New(st, nil, syncer.Options{Logger: app.logger(cmd)}),
				Clock:    app.clock,
				Reporter: migrate.LogReporter{Logger: app.logger(cmd)},
			}
			if dryRun {
				cmds, res, err := m.Synthesize(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"templates": res.Templates, "checklists": res.Checklists, "commands": len(cmds)})
			}
			res, err := m.Run(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if res.Outcome == migrate.OutcomeMigrated && res.Templates+res.Checklists > 0 {
				app.mutated = true
			}
			return writeOut(cmd, app, map[string]any{"outcome": string(res.Outcome), "templates": res.Templates, "checklists": res.Checklists})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count what would be synthesized without writing")
	return cmd
}

func newLegacyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "legacy",
		Short:  "Legacy direct-write tables (fixtures)",
		Hidden: true,
	}
	cmd.AddCommand(newLegacySeedCmd(app))
	return cmd
}

// legacySeed is the fixture file shape: aggregates with nested tasks.
type legacySeed struct {
	Templates  []model.Template  `json:"templates"`
	Checklists []model.Checklist `json:"checklists"`
}

func newLegacySeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json|->",
		Short: "Write templates and checklists straight into the legacy tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				r = f
			}
			var seed legacySeed
			if err := json.NewDecoder(r).Decode(&seed); err != nil {
				return writeErr(cmd, fmt.Errorf("decode seed: %w", err))
			}
			st, err := app.store(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			for _, t := range seed.Templates {
				t.Tasks = numbered(t.Tasks)
				if err := st.PutLegacyTemplate(ctx, t); err != nil {
					return writeErr(cmd, err)
				}
			}
			for _, c := range seed.Checklists {
				c.Tasks = numbered(c.Tasks)
				if err := st.PutLegacyChecklist(ctx, c); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"templates": len(seed.Templates), "checklists": len(seed.Checklists)})
		},
	}
}

// numbered gives every task its pre-order index as position so hand-written
// fixtures without positions keep their order.
func numbered(f tree.Forest) tree.Forest {
	return f.ApplyPositions(f.FlatPositions())
}
