package command

import (
	"strings"

	"checkmate/internal/model"
	"checkmate/internal/tree"
)

const (
	TagCreateTemplate               = "createTemplate"
	TagUpdateTemplateTitle          = "updateTemplateTitle"
	TagUpdateTemplateDescription    = "updateTemplateDescription"
	TagAddTemplateTask              = "addTemplateTask"
	TagUpdateTemplateTaskTitle      = "updateTemplateTaskTitle"
	TagDeleteTemplateTask           = "deleteTemplateTask"
	TagMoveTemplateTask             = "moveTemplateTask"
	TagUpdateTemplateTaskPositions  = "updateTemplateTaskPositions"
	TagAddOrReplaceTemplateReminder = "addOrReplaceTemplateReminder"
	TagDeleteTemplateReminder       = "deleteTemplateReminder"
	TagDeleteTemplate               = "deleteTemplate"
)

type templateKind struct{}

func (templateKind) Kind() model.Kind { return model.KindTemplate }

// CreateTemplate carries a full snapshot. Applying it replaces whatever the
// aggregate held, which makes replays of the same create harmless.
type CreateTemplate struct {
	Envelope
	templateKind
	Template model.Template `json:"template"`
}

func (CreateTemplate) Tag() string { return TagCreateTemplate }

func (c CreateTemplate) Apply(model.Template) model.Template {
	t := c.Template
	t.ID = c.AggregateID
	t.Reminders = cloneReminders(t.Reminders)
	return t
}

type UpdateTemplateTitle struct {
	Envelope
	templateKind
	Title string `json:"title"`
}

func (UpdateTemplateTitle) Tag() string { return TagUpdateTemplateTitle }

func (c UpdateTemplateTitle) Apply(t model.Template) model.Template {
	t.Title = c.Title
	return t
}

type UpdateTemplateDescription struct {
	Envelope
	templateKind
	Description string `json:"description"`
}

func (UpdateTemplateDescription) Tag() string { return TagUpdateTemplateDescription }

func (c UpdateTemplateDescription) Apply(t model.Template) model.Template {
	t.Description = c.Description
	return t
}

// AddTemplateTask appends a task to the end of its parent's children (or of
// the root list). Adding an id that is already present is a no-op, as is
// adding under a parent that no longer exists.
type AddTemplateTask struct {
	Envelope
	templateKind
	TaskID   string  `json:"taskId"`
	ParentID *string `json:"parentId,omitempty"`
	Title    string  `json:"title"`
}

func (AddTemplateTask) Tag() string { return TagAddTemplateTask }

func (c AddTemplateTask) Apply(t model.Template) model.Template {
	t.Tasks = addTask(t.Tasks, c.TaskID, c.ParentID, c.Title)
	return t
}

type UpdateTemplateTaskTitle struct {
	Envelope
	templateKind
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

func (UpdateTemplateTaskTitle) Tag() string { return TagUpdateTemplateTaskTitle }

func (c UpdateTemplateTaskTitle) Apply(t model.Template) model.Template {
	next, err := t.Tasks.Update(c.TaskID, func(n tree.Node) tree.Node {
		n.Title = c.Title
		return n
	})
	if err == nil {
		t.Tasks = next
	}
	return t
}

// DeleteTemplateTask removes the task and everything below it.
type DeleteTemplateTask struct {
	Envelope
	templateKind
	TaskID string `json:"taskId"`
}

func (DeleteTemplateTask) Tag() string { return TagDeleteTemplateTask }

func (c DeleteTemplateTask) Apply(t model.Template) model.Template {
	if next, err := t.Tasks.Remove(c.TaskID); err == nil {
		t.Tasks = next
	}
	return t
}

// MoveTemplateTask re-parents a task (with its subtree) to the end of the new
// parent's children. A nil parent promotes the task to the end of the root
// list. Moving under a missing node or into its own subtree is a no-op.
type MoveTemplateTask struct {
	Envelope
	templateKind
	TaskID      string  `json:"taskId"`
	NewParentID *string `json:"newParentId,omitempty"`
}

func (MoveTemplateTask) Tag() string { return TagMoveTemplateTask }

func (c MoveTemplateTask) Apply(t model.Template) model.Template {
	t.Tasks = moveTask(t.Tasks, c.TaskID, c.NewParentID)
	return t
}

// UpdateTemplateTaskPositions assigns sort positions at every level and
// re-sorts siblings.
type UpdateTemplateTaskPositions struct {
	Envelope
	templateKind
	Positions map[string]int `json:"positions"`
}

func (UpdateTemplateTaskPositions) Tag() string { return TagUpdateTemplateTaskPositions }

func (c UpdateTemplateTaskPositions) Apply(t model.Template) model.Template {
	t.Tasks = t.Tasks.ApplyPositions(c.Positions)
	return t
}

type AddOrReplaceTemplateReminder struct {
	Envelope
	templateKind
	Reminder model.Reminder `json:"reminder"`
}

func (AddOrReplaceTemplateReminder) Tag() string { return TagAddOrReplaceTemplateReminder }

func (c AddOrReplaceTemplateReminder) Apply(t model.Template) model.Template {
	if strings.TrimSpace(c.Reminder.ID) == "" {
		return t
	}
	rs := cloneReminders(t.Reminders)
	if i := t.FindReminder(c.Reminder.ID); i >= 0 {
		rs[i] = c.Reminder
	} else {
		rs = append(rs, c.Reminder)
	}
	t.Reminders = rs
	return t
}

type DeleteTemplateReminder struct {
	Envelope
	templateKind
	ReminderID string `json:"reminderId"`
}

func (DeleteTemplateReminder) Tag() string { return TagDeleteTemplateReminder }

func (c DeleteTemplateReminder) Apply(t model.Template) model.Template {
	i := t.FindReminder(c.ReminderID)
	if i < 0 {
		return t
	}
	rs := make([]model.Reminder, 0, len(t.Reminders)-1)
	rs = append(rs, t.Reminders[:i]...)
	rs = append(rs, t.Reminders[i+1:]...)
	t.Reminders = rs
	return t
}

// DeleteTemplate sets the soft-delete flag; nothing is physically removed.
type DeleteTemplate struct {
	Envelope
	templateKind
}

func (DeleteTemplate) Tag() string { return TagDeleteTemplate }

func (c DeleteTemplate) Apply(t model.Template) model.Template {
	t.Removed = true
	return t
}

func cloneReminders(rs []model.Reminder) []model.Reminder {
	if rs == nil {
		return nil
	}
	return append([]model.Reminder(nil), rs...)
}

func nextPosition(f tree.Forest, parentID string) int {
	var ids []string
	if parentID == "" {
		ids = f.Roots()
	} else {
		ids = f.Children(parentID)
	}
	next := 0
	for _, id := range ids {
		if n, ok := f.Node(id); ok && n.Position >= next {
			next = n.Position + 1
		}
	}
	return next
}

func addTask(f tree.Forest, taskID string, parentID *string, title string) tree.Forest {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || f.Has(taskID) {
		return f
	}
	pid := ""
	if parentID != nil {
		pid = strings.TrimSpace(*parentID)
	}
	leaf := tree.Leaf(tree.Node{ID: taskID, Title: title, Position: nextPosition(f, pid)})
	if pid == "" {
		return f.AppendRoot(leaf)
	}
	next, err := f.InsertAsChild(pid, leaf, tree.Append)
	if err != nil {
		return f
	}
	return next
}

func moveTask(f tree.Forest, taskID string, newParentID *string) tree.Forest {
	pid := ""
	if newParentID != nil {
		pid = strings.TrimSpace(*newParentID)
	}
	if pid != "" && (!f.Has(pid) || pid == taskID || f.IsDescendant(pid, taskID)) {
		return f
	}
	res, sub, err := f.Extract(taskID)
	if err != nil {
		return f
	}
	sub, _ = sub.Update(taskID, func(n tree.Node) tree.Node {
		n.Position = nextPosition(res, pid)
		return n
	})
	if pid == "" {
		return res.AppendRoot(sub)
	}
	next, err := res.InsertAsChild(pid, sub, tree.Append)
	if err != nil {
		return f
	}
	return next
}
