package cli

import (
	"fmt"
	"strings"
	"time"

	"checkmate/internal/editor"
	"checkmate/internal/model"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Edit the task tree of a template",
	}
	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksRenameCmd(app))
	cmd.AddCommand(newTasksRemoveCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksDragCmd(app))
	return cmd
}

func newTasksAddCmd(app *App) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "add <template-id> <title>",
		Short: "Append a task (at the root, or under --parent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var taskID string
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				pid, err := resolveTask(ed.Current().Tasks, parent)
				if err != nil {
					return err
				}
				taskID, err = ed.AddTask(pid, args[1])
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.Format == "json" {
				return writeOut(cmd, app, map[string]any{"taskId": taskID, "template": t})
			}
			return writeOut(cmd, app, t)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent task id (default: root)")
	return cmd
}

func newTasksRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <template-id> <task-id> <title>",
		Short: "Rename a task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				id, err := resolveTask(ed.Current().Tasks, args[1])
				if err != nil {
					return err
				}
				return ed.RenameTask(id, args[2])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newTasksRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <template-id> <task-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a task and its subtasks",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				id, err := resolveTask(ed.Current().Tasks, args[1])
				if err != nil {
					return err
				}
				return ed.RemoveTask(id)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "move <template-id> <task-id>",
		Short: "Re-parent a task to the end of --parent's children (or the root list)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				f := ed.Current().Tasks
				id, err := resolveTask(f, args[1])
				if err != nil {
					return err
				}
				pid, err := resolveTask(f, parent)
				if err != nil {
					return err
				}
				return ed.MoveTask(id, pid)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "New parent task id (default: root)")
	return cmd
}

func newTasksDragCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "drag <template-id> <task-id> <onto-task-id>",
		Short: "Drop a task onto another row of the flattened list",
		Long: strings.TrimSpace(`
Moves a task the way a drag in the flattened list does: the task (with its
subtasks) lands at the row of <onto-task-id> and takes its parent from the
rows around the drop point.`),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				f := ed.Current().Tasks
				id, err := resolveTask(f, args[1])
				if err != nil {
					return err
				}
				ref, err := resolveTask(f, args[2])
				if err != nil {
					return err
				}
				return ed.Drag(id, ref)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func newRemindersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"reminder"},
		Short:   "Template reminders",
	}
	cmd.AddCommand(newRemindersSetCmd(app))
	cmd.AddCommand(newRemindersRemoveCmd(app))
	return cmd
}

func newRemindersSetCmd(app *App) *cobra.Command {
	var id, at, repeat string
	cmd := &cobra.Command{
		Use:   "set <template-id>",
		Short: "Add a reminder, or replace the one with --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, err := parseWhen(at)
			if err != nil {
				return writeErr(cmd, err)
			}
			rep, err := parseRepeat(repeat)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				_, err := ed.SetReminder(model.Reminder{ID: strings.TrimSpace(id), StartAt: startAt, Repeat: rep})
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Reminder id to replace")
	cmd.Flags().StringVar(&at, "at", "", "Start time (RFC3339 or \"2006-01-02 15:04\" local)")
	cmd.Flags().StringVar(&repeat, "repeat", "", "Repeat: daily|weekly|monthly (default: once)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newRemindersRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <template-id> <reminder-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a reminder",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.editTemplate(cmd.Context(), args[0], func(ed *editor.Editor) error {
				return ed.DeleteReminder(args[1])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, t)
		},
	}
}

func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or \"2006-01-02 15:04\")", s)
}

func parseRepeat(s string) (model.Repeat, error) {
	switch r := model.Repeat(strings.ToLower(strings.TrimSpace(s))); r {
	case model.RepeatNone, model.RepeatDaily, model.RepeatWeekly, model.RepeatMonthly:
		return r, nil
	case "once":
		return model.RepeatNone, nil
	default:
		return "", fmt.Errorf("invalid repeat %q (want daily|weekly|monthly)", s)
	}
}
