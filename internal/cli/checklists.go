package cli

import (
	"context"
	"strings"

	"checkmate/internal/command"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
	"checkmate/internal/tree"

	"github.com/spf13/cobra"
)

func newChecklistsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checklists",
		Aliases: []string{"checklist", "cl"},
		Short:   "Checklists started from templates",
	}
	cmd.AddCommand(newChecklistsListCmd(app))
	cmd.AddCommand(newChecklistsShowCmd(app))
	cmd.AddCommand(newChecklistsCreateCmd(app))
	cmd.AddCommand(newChecklistsRenameCmd(app))
	cmd.AddCommand(newChecklistsDescribeCmd(app))
	cmd.AddCommand(newChecklistsCheckCmd(app))
	cmd.AddCommand(newChecklistsDeleteCmd(app))
	return cmd
}

func newChecklistsListCmd(app *App) *cobra.Command {
	var templateID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checklists",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			cs, err := st.Checklists(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]model.Checklist, 0, len(cs))
			for _, c := range hydrate.Live(cs) {
				if templateID == "" || strings.HasPrefix(c.TemplateID, templateID) {
					out = append(out, c)
				}
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Only checklists started from this template")
	return cmd
}

func newChecklistsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <checklist-id>",
		Short: "Show a checklist with its boxes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := st.ResolveChecklist(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, c)
		},
	}
}

func newChecklistsCreateCmd(app *App) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create <template-id>",
		Short: "Start a checklist from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.store(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := st.ResolveTemplate(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if t.Removed {
				return writeErr(cmd, tree.NotFoundError{Kind: "template", ID: t.ID})
			}
			id := app.clock.NewID()
			env := app.clock.Envelope(id)
			c := model.NewChecklistFromTemplate(t, id, env.Timestamp, app.clock.NewID)
			if s := strings.TrimSpace(title); s != "" {
				c.Title = s
			}
			create := command.CreateChecklist{Envelope: env, Checklist: c}
			if err := st.Append(ctx, create); err != nil {
				return writeErr(cmd, err)
			}
			app.mutated = true
			return writeOut(cmd, app, hydrate.Checklist(model.EmptyChecklist(id), []command.ChecklistCommand{create}))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Checklist title (default: the template's)")
	return cmd
}

func newChecklistsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <checklist-id> <title>",
		Short: "Change a checklist's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.editChecklist(cmd.Context(), args[0], func(_ model.Checklist, env command.Envelope) (command.ChecklistCommand, error) {
				return command.UpdateChecklistTitle{Envelope: env, Title: strings.TrimSpace(args[1])}, nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, c)
		},
	}
}

func newChecklistsDescribeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <checklist-id> <description>",
		Short: "Set a checklist's description (empty clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.editChecklist(cmd.Context(), args[0], func(_ model.Checklist, env command.Envelope) (command.ChecklistCommand, error) {
				return command.UpdateChecklistDescription{Envelope: env, Description: strings.TrimSpace(args[1])}, nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, c)
		},
	}
}

func newChecklistsCheckCmd(app *App) *cobra.Command {
	var uncheck, cascade bool
	cmd := &cobra.Command{
		Use:   "check <checklist-id> <task-id>",
		Short: "Check (or --uncheck) a box",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.editChecklist(cmd.Context(), args[0], func(c model.Checklist, env command.Envelope) (command.ChecklistCommand, error) {
				id, err := resolveTask(c.Tasks, args[1])
				if err != nil {
					return nil, err
				}
				if id == "" {
					return nil, tree.NotFoundError{Kind: "task", ID: args[1]}
				}
				return command.UpdateChecklistCheckbox{Envelope: env, TaskID: id, Checked: !uncheck, Cascade: cascade}, nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, c)
		},
	}
	cmd.Flags().BoolVar(&uncheck, "uncheck", false, "Clear the box instead")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Apply to every subtask too")
	return cmd
}

func newChecklistsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <checklist-id>",
		Short: "Delete a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.editChecklist(cmd.Context(), args[0], func(_ model.Checklist, env command.Envelope) (command.ChecklistCommand, error) {
				return command.DeleteChecklist{Envelope: env}, nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"deleted": c.ID})
		},
	}
}

// editChecklist builds one command against the current checklist, logs it
// and returns the checklist with it applied.
func (a *App) editChecklist(ctx context.Context, ref string, build func(model.Checklist, command.Envelope) (command.ChecklistCommand, error)) (model.Checklist, error) {
	st, err := a.store(ctx)
	if err != nil {
		return model.Checklist{}, err
	}
	c, err := st.ResolveChecklist(ctx, ref)
	if err != nil {
		return model.Checklist{}, err
	}
	if c.Removed {
		return model.Checklist{}, tree.NotFoundError{Kind: "checklist", ID: c.ID}
	}
	cc, err := build(c, a.clock.Envelope(c.ID))
	if err != nil {
		return model.Checklist{}, err
	}
	if err := st.Append(ctx, cc); err != nil {
		return model.Checklist{}, err
	}
	a.mutated = true
	return hydrate.Checklist(c, []command.ChecklistCommand{cc}), nil
}
