package command

import (
	"checkmate/internal/model"
	"checkmate/internal/tree"
)

const (
	TagCreateChecklist            = "createChecklist"
	TagUpdateChecklistTitle       = "updateChecklistTitle"
	TagUpdateChecklistDescription = "updateChecklistDescription"
	TagUpdateChecklistCheckbox    = "updateChecklistCheckbox"
	TagDeleteChecklist            = "deleteChecklist"
)

type checklistKind struct{}

func (checklistKind) Kind() model.Kind { return model.KindChecklist }

type CreateChecklist struct {
	Envelope
	checklistKind
	Checklist model.Checklist `json:"checklist"`
}

func (CreateChecklist) Tag() string { return TagCreateChecklist }

func (c CreateChecklist) Apply(model.Checklist) model.Checklist {
	out := c.Checklist
	out.ID = c.AggregateID
	return out
}

type UpdateChecklistTitle struct {
	Envelope
	checklistKind
	Title string `json:"title"`
}

func (UpdateChecklistTitle) Tag() string { return TagUpdateChecklistTitle }

func (c UpdateChecklistTitle) Apply(cl model.Checklist) model.Checklist {
	cl.Title = c.Title
	return cl
}

type UpdateChecklistDescription struct {
	Envelope
	checklistKind
	Description string `json:"description"`
}

func (UpdateChecklistDescription) Tag() string { return TagUpdateChecklistDescription }

func (c UpdateChecklistDescription) Apply(cl model.Checklist) model.Checklist {
	cl.Description = c.Description
	return cl
}

// UpdateChecklistCheckbox sets one box. With Cascade the whole subtree below
// the box takes the same value.
type UpdateChecklistCheckbox struct {
	Envelope
	checklistKind
	TaskID  string `json:"taskId"`
	Checked bool   `json:"checked"`
	Cascade bool   `json:"cascade,omitempty"`
}

func (UpdateChecklistCheckbox) Tag() string { return TagUpdateChecklistCheckbox }

func (c UpdateChecklistCheckbox) Apply(cl model.Checklist) model.Checklist {
	if !cl.Tasks.Has(c.TaskID) {
		return cl
	}
	ids := []string{c.TaskID}
	if c.Cascade {
		ids = cl.Tasks.Descendants(c.TaskID)
	}
	f := cl.Tasks
	for _, id := range ids {
		f, _ = f.Update(id, func(n tree.Node) tree.Node {
			n.Checked = c.Checked
			return n
		})
	}
	cl.Tasks = f
	return cl
}

type DeleteChecklist struct {
	Envelope
	checklistKind
}

func (DeleteChecklist) Tag() string { return TagDeleteChecklist }

func (DeleteChecklist) Apply(cl model.Checklist) model.Checklist {
	cl.Removed = true
	return cl
}
