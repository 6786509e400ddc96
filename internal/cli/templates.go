package cli

import (
	"context"
	"strings"

	"checkmate/internal/editor"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
	"checkmate/internal/store"
	"checkmate/internal/tree"

	"github.com/spf13/cobra"
)

func newTemplatesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "tpl"},
		Short:   "Checklist templates",
	}
	cmd.AddCommand(newTemplatesListCmd(app))
	cmd.AddCommand(newTemplatesShowCmd(app))
	cmd.AddCommand(newTemplatesCreateCmd(app))
	cmd.AddCommand(newTemplatesRenameCmd(app))
	cmd.AddCommand(newTemplatesDescribeCmd(app))
	cmd.AddCommand(newTemplatesDeleteCmd(app))
	return cmd
}

func newTemplatesListCmd(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates (pending edits included)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			ts, err := st.Templates(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if !all {
				ts = hydrate.Live(ts)
			}
			if ts == nil {
				ts = []model.Template{}
			}
			return writeOut(cmd, app, ts)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include deleted templates")
	return cmd
}

func newTemplatesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a template with its task tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := st.ResolveTemplate(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newTemplatesCreateCmd(app *App) *cobra.Command {
	var description string
	var tasks []string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.store(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			ed := editor.New(app.clock)
			if _, err := ed.Create(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if d := strings.TrimSpace(description); d != "" {
				if err := ed.ChangeDescription(d); err != nil {
					return writeErr(cmd, err)
				}
			}
			for _, title := range tasks {
				if _, err := ed.AddTask("", title); err != nil {
					return writeErr(cmd, err)
				}
			}
			t, err := app.save(cmd.Context(), st, ed)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Markdown description")
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "Root task title (repeatable)")
	return cmd
}

func newTemplatesRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <template-id> <title>",
		Short: "Rename a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				return ed.Rename(args[1])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newTemplatesDescribeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <template-id> <markdown>",
		Short: "Set a template's description (empty clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				return ed.ChangeDescription(args[1])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newTemplatesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <template-id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				return ed.Delete()
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"deleted": t.ID})
		},
	}
}

// editTemplate runs one editor session: load, edit, save. A failed edit
// discards the session and leaves the log untouched.
func (a *App) editTemplate(ctx context.Context, ref string, edit func(*editor.Editor) error) (model.Template, error) {
	st, err := a.store(ctx)
	if err != nil {
		return model.Template{}, err
	}
	t, err := st.ResolveTemplate(ctx, ref)
	if err != nil {
		return model.Template{}, err
	}
	if t.Removed {
		return model.Template{}, tree.NotFoundError{Kind: "template", ID: t.ID}
	}
	ed := editor.New(a.clock)
	if err := ed.Load(t); err != nil {
		return model.Template{}, err
	}
	if err := edit(ed); err != nil {
		ed.Discard()
		return model.Template{}, err
	}
	return a.save(ctx, st, ed)
}

func (a *App) save(ctx context.Context, st *store.Store, ed *editor.Editor) (model.Template, error) {
	cmds, err := ed.Save(ctx, st)
	if err != nil {
		return model.Template{}, err
	}
	if len(cmds) > 0 {
		a.mutated = true
	}
	return ed.Current(), nil
}

// resolveTask matches a task by exact id or unique id prefix.
func resolveTask(f tree.Forest, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if f.Has(ref) {
		return ref, nil
	}
	var match []string
	for _, n := range f.Nodes() {
		if strings.HasPrefix(n.ID, ref) {
			match = append(match, n.ID)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return "", tree.NotFoundError{Kind: "task", ID: ref}
	default:
		return "", store.AmbiguousError{Kind: "task", Ref: ref, Count: len(match)}
	}
}
