package model

import (
	"time"

	"checkmate/internal/tree"
)

type Kind string

const (
	KindTemplate  Kind = "template"
	KindChecklist Kind = "checklist"
)

type Repeat string

const (
	RepeatNone    Repeat = ""
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
)

type Reminder struct {
	ID      string    `json:"id"`
	StartAt time.Time `json:"startAt"`
	Repeat  Repeat    `json:"repeat,omitempty"`
}

type Template struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Removed     bool        `json:"isRemoved"`
	Tasks       tree.Forest `json:"tasks"`
	Reminders   []Reminder  `json:"reminders,omitempty"`
}

type Checklist struct {
	ID          string      `json:"id"`
	TemplateID  string      `json:"templateId,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Removed     bool        `json:"isRemoved"`
	Tasks       tree.Forest `json:"tasks"`
}

// EmptyTemplate is the starting point when a template exists only as
// commands.
func EmptyTemplate(id string) Template { return Template{ID: id} }

func EmptyChecklist(id string) Checklist { return Checklist{ID: id} }

func (t Template) AggregateID() string  { return t.ID }
func (c Checklist) AggregateID() string { return c.ID }

// FindReminder returns the index of the reminder with id, or -1.
func (t Template) FindReminder(id string) int {
	for i := range t.Reminders {
		if t.Reminders[i].ID == id {
			return i
		}
	}
	return -1
}
